package model

import "time"

// HoldStatus is the lifecycle state of a Hold.
type HoldStatus string

const (
	HoldStatusActive  HoldStatus = "active"
	HoldStatusUsed    HoldStatus = "used"
	HoldStatusExpired HoldStatus = "expired"
)

// Hold is a time-bounded reservation of stock. It is created active and
// transitions exactly once, to used (converted into an order) or to expired
// (stock returned by the sweeper). Both terminal states are immutable.
type Hold struct {
	ID        int64      `json:"id"`
	ProductID int64      `json:"product_id"`
	Quantity  int        `json:"quantity"`
	Status    HoldStatus `json:"status"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateHoldRequest is the DTO for POST /holds.
// Pointer fields distinguish "absent" from zero values during validation.
type CreateHoldRequest struct {
	ProductID *int64 `json:"product_id" validate:"required,gte=1"`
	Quantity  *int   `json:"quantity" validate:"required,gte=1"`
}

// HoldResponse is the API response DTO for a created hold.
type HoldResponse struct {
	HoldID    int64     `json:"hold_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
