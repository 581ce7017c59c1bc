package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
)

// WebhookServiceInterface defines the interface for webhook processing.
type WebhookServiceInterface interface {
	ProcessWebhook(ctx context.Context, req *model.WebhookRequest, payload []byte) (*model.WebhookResponse, error)
}

// WebhookHandler handles payment provider webhook deliveries.
type WebhookHandler struct {
	service   WebhookServiceInterface
	validator *validator.Validate
}

// NewWebhookHandler creates a new WebhookHandler with the given service and validator.
func NewWebhookHandler(svc WebhookServiceInterface, v *validator.Validate) *WebhookHandler {
	return &WebhookHandler{service: svc, validator: v}
}

// formatWebhookValidationError converts validator errors to stable messages.
func formatWebhookValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "IdempotencyKey":
				if tag == "required" {
					return "invalid request: idempotency_key is required"
				}
				if tag == "notblank" {
					return "invalid request: idempotency_key cannot be whitespace only"
				}
				if tag == "max" {
					return "invalid request: idempotency_key exceeds maximum length of 255"
				}
				return "invalid request: idempotency_key is invalid"
			case "OrderID":
				if tag == "required" {
					return "invalid request: order_id is required"
				}
				if tag == "gte" {
					return "invalid request: order_id must be at least 1"
				}
				return "invalid request: order_id is invalid"
			case "PaymentStatus":
				if tag == "required" {
					return "invalid request: payment_status is required"
				}
				if tag == "oneof" {
					return "invalid request: payment_status must be success or failure"
				}
				return "invalid request: payment_status is invalid"
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

// ProcessWebhook handles POST /payments/webhook requests.
// The raw body is persisted as the webhook payload; providers may include
// fields beyond the ones validated here.
func (h *WebhookHandler) ProcessWebhook(c *fiber.Ctx) error {
	var req model.WebhookRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": formatWebhookValidationError(err)})
	}

	payload := make([]byte, len(c.Body()))
	copy(payload, c.Body()) // fasthttp reuses the request buffer

	resp, err := h.service.ProcessWebhook(c.Context(), &req, payload)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Order not found - webhook may have arrived early",
			})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("idempotency_key", req.IdempotencyKey).
			Msg("failed to process webhook")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(resp)
}
