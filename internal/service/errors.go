package service

import (
	"errors"
	"fmt"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
)

var (
	// ErrProductNotFound is returned when a hold references a product that
	// does not exist
	ErrProductNotFound = errors.New("product not found")

	// ErrHoldNotFound is returned when an order references a hold that does
	// not exist
	ErrHoldNotFound = errors.New("hold not found")

	// ErrHoldExpired is returned when a hold's time budget elapsed before
	// conversion, even if the sweeper has not retired it yet
	ErrHoldExpired = errors.New("hold has expired")

	// ErrHoldAlreadyUsed is returned when an order already exists for a hold.
	// It is surfaced by the UNIQUE constraint on orders.hold_id, the
	// authoritative defence against two conversions racing past the pre-checks
	ErrHoldAlreadyUsed = errors.New("hold has already been used for an order")

	// ErrOrderNotFound is returned when a webhook references an order that
	// does not exist yet (out-of-order arrival). The webhook log is still
	// committed so that retries of the same key are suppressed
	ErrOrderNotFound = errors.New("order not found")

	// ErrDuplicateWebhook is returned by the log insert when another delivery
	// of the same idempotency key already committed
	ErrDuplicateWebhook = errors.New("webhook already processed")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")
)

// InsufficientStockError is returned when a hold asks for more units than the
// product has on the shelf. Available carries the stock observed under lock.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock, available: %d", e.Available)
}

// HoldNotActiveError is returned when a hold is in a terminal state and
// cannot be converted into an order.
type HoldNotActiveError struct {
	Status model.HoldStatus
}

func (e *HoldNotActiveError) Error() string {
	return fmt.Sprintf("hold is %s and cannot be used", e.Status)
}
