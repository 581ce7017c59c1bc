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

// OrderServiceInterface defines the interface for order business logic.
type OrderServiceInterface interface {
	CreateOrderFromHold(ctx context.Context, holdID int64) (*model.Order, error)
}

// OrderHandler handles HTTP requests for hold-to-order conversion.
type OrderHandler struct {
	service   OrderServiceInterface
	validator *validator.Validate
}

// NewOrderHandler creates a new OrderHandler with the given service and validator.
func NewOrderHandler(svc OrderServiceInterface, v *validator.Validate) *OrderHandler {
	return &OrderHandler{service: svc, validator: v}
}

// formatOrderValidationError converts validator errors to stable messages.
func formatOrderValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "HoldID":
				if tag == "required" {
					return "invalid request: hold_id is required"
				}
				if tag == "gte" {
					return "invalid request: hold_id must be at least 1"
				}
				return "invalid request: hold_id is invalid"
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

// CreateOrder handles POST /orders requests to convert a hold into an order.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req model.CreateOrderRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": formatOrderValidationError(err)})
	}

	order, err := h.service.CreateOrderFromHold(c.Context(), *req.HoldID)
	if err != nil {
		if errors.Is(err, service.ErrHoldNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Hold not found"})
		}
		var notActive *service.HoldNotActiveError
		if errors.As(err, &notActive) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("Hold is %s and cannot be used", notActive.Status),
			})
		}
		if errors.Is(err, service.ErrHoldExpired) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Hold has expired"})
		}
		if errors.Is(err, service.ErrHoldAlreadyUsed) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Hold has already been used for an order"})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Int64("hold_id", *req.HoldID).
			Msg("failed to create order")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": model.NewOrderResponse(order)})
}
