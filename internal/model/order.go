package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order records the conversion of a Hold before its expiry. The stock units
// stay debited while the order is pending; cancellation returns them.
type Order struct {
	ID         int64           `json:"id"`
	HoldID     int64           `json:"hold_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     OrderStatus     `json:"status"`
	PaidAt     *time.Time      `json:"paid_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CreateOrderRequest is the DTO for POST /orders.
type CreateOrderRequest struct {
	HoldID *int64 `json:"hold_id" validate:"required,gte=1"`
}

// OrderResponse is the API response DTO for a created order.
type OrderResponse struct {
	OrderID    int64     `json:"order_id"`
	ProductID  int64     `json:"product_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice string    `json:"total_price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewOrderResponse shapes an Order for the API.
func NewOrderResponse(o *Order) *OrderResponse {
	return &OrderResponse{
		OrderID:    o.ID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice.StringFixed(2),
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
	}
}
