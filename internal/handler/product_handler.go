package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
)

// ProductServiceInterface defines the interface for product lookups.
type ProductServiceInterface interface {
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
}

// ProductHandler handles HTTP requests for product lookups.
type ProductHandler struct {
	service ProductServiceInterface
}

// NewProductHandler creates a new ProductHandler with the given service.
func NewProductHandler(svc ProductServiceInterface) *ProductHandler {
	return &ProductHandler{service: svc}
}

// GetProduct handles GET /products/:id requests.
// A non-numeric id is indistinguishable from a missing product: 404.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
	}

	product, err := h.service.GetProduct(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
		}
		log.Error().Err(err).Int64("product_id", id).Msg("failed to get product")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{"data": model.NewProductResponse(product)})
}
