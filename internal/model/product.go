package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a sellable item. Stock is the number of units currently
// on the shelf: units held or ordered are already debited from it.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"-"`
}

// ProductResponse is the API response DTO for GET /products/:id
type ProductResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Price          string `json:"price"`
	AvailableStock int    `json:"available_stock"`
	InStock        bool   `json:"in_stock"`
}

// NewProductResponse shapes a Product for the API. Price is rendered as a
// decimal string with exactly two fractional digits.
func NewProductResponse(p *Product) *ProductResponse {
	return &ProductResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price.StringFixed(2),
		AvailableStock: p.Stock,
		InStock:        p.Stock > 0,
	}
}
