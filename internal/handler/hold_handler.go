package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
)

// HoldServiceInterface defines the interface for hold business logic.
type HoldServiceInterface interface {
	CreateHold(ctx context.Context, productID int64, quantity int) (*model.Hold, error)
}

// HoldHandler handles HTTP requests for stock reservations.
type HoldHandler struct {
	service   HoldServiceInterface
	validator *validator.Validate
}

// NewHoldHandler creates a new HoldHandler with the given service and validator.
func NewHoldHandler(svc HoldServiceInterface, v *validator.Validate) *HoldHandler {
	return &HoldHandler{service: svc, validator: v}
}

// formatHoldValidationError converts validator errors to stable messages.
func formatHoldValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "ProductID":
				if tag == "required" {
					return "invalid request: product_id is required"
				}
				if tag == "gte" {
					return "invalid request: product_id must be at least 1"
				}
				return "invalid request: product_id is invalid"
			case "Quantity":
				if tag == "required" {
					return "invalid request: quantity is required"
				}
				if tag == "gte" {
					return "invalid request: quantity must be at least 1"
				}
				return "invalid request: quantity is invalid"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// CreateHold handles POST /holds requests to reserve stock.
func (h *HoldHandler) CreateHold(c *fiber.Ctx) error {
	var req model.CreateHoldRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": formatHoldValidationError(err)})
	}

	hold, err := h.service.CreateHold(c.Context(), *req.ProductID, *req.Quantity)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Product not found"})
		}
		var stockErr *service.InsufficientStockError
		if errors.As(err, &stockErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("Insufficient stock. Available: %d", stockErr.Available),
			})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Int64("product_id", *req.ProductID).
			Int("quantity", *req.Quantity).
			Msg("failed to create hold")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": model.HoldResponse{
		HoldID:    hold.ID,
		ExpiresAt: hold.ExpiresAt,
	}})
}
