package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
)

// mockProductService is a mock implementation of ProductServiceInterface.
type mockProductService struct {
	getProductFn func(ctx context.Context, id int64) (*model.Product, error)
}

func (m *mockProductService) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if m.getProductFn != nil {
		return m.getProductFn(ctx, id)
	}
	return nil, service.ErrProductNotFound
}

func setupProductApp(mockSvc *mockProductService) *fiber.App {
	app := fiber.New()
	h := NewProductHandler(mockSvc)
	app.Get("/products/:id", h.GetProduct)
	return app
}

func getPath(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	return resp
}

func TestGetProduct_Success(t *testing.T) {
	mockSvc := &mockProductService{
		getProductFn: func(ctx context.Context, id int64) (*model.Product, error) {
			return &model.Product{
				ID:          id,
				Name:        "Limited Edition Sneaker",
				Description: "Numbered drop",
				Price:       mustDecimal(t, "99.99"),
				Stock:       100,
			}, nil
		},
	}
	app := setupProductApp(mockSvc)

	resp := getPath(t, app, "/products/1")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Data model.ProductResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, int64(1), result.Data.ID)
	assert.Equal(t, "99.99", result.Data.Price, "price is a fixed two-decimal string")
	assert.Equal(t, 100, result.Data.AvailableStock)
	assert.True(t, result.Data.InStock)
}

func TestGetProduct_SoldOut(t *testing.T) {
	mockSvc := &mockProductService{
		getProductFn: func(ctx context.Context, id int64) (*model.Product, error) {
			return &model.Product{ID: id, Name: "Limited Edition Sneaker", Price: mustDecimal(t, "99.99"), Stock: 0}, nil
		},
	}
	app := setupProductApp(mockSvc)

	resp := getPath(t, app, "/products/1")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Data model.ProductResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 0, result.Data.AvailableStock)
	assert.False(t, result.Data.InStock)
}

func TestGetProduct_NotFound(t *testing.T) {
	app := setupProductApp(&mockProductService{})

	resp := getPath(t, app, "/products/999")

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Product not found", decodeError(t, resp), "Exact error message required")
}

func TestGetProduct_NonNumericID(t *testing.T) {
	app := setupProductApp(&mockProductService{})

	resp := getPath(t, app, "/products/sneaker")

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Product not found", decodeError(t, resp), "a non-numeric id is indistinguishable from a missing product")
}

func TestGetProduct_InternalError(t *testing.T) {
	mockSvc := &mockProductService{
		getProductFn: func(ctx context.Context, id int64) (*model.Product, error) {
			return nil, assert.AnError
		},
	}
	app := setupProductApp(mockSvc)

	resp := getPath(t, app, "/products/1")

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", decodeError(t, resp))
}
