package model

import "time"

// PaymentStatus is the outcome reported by the payment provider.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailure PaymentStatus = "failure"
)

// WebhookLog is the append-only record of processed webhook deliveries.
// The UNIQUE constraint on IdempotencyKey is the idempotency primitive:
// inserting the row is the linearisation point for a delivery.
// OrderID is nil when the webhook arrived before its order existed.
type WebhookLog struct {
	ID             int64         `json:"id"`
	IdempotencyKey string        `json:"idempotency_key"`
	OrderID        *int64        `json:"order_id"`
	Status         PaymentStatus `json:"status"`
	Payload        []byte        `json:"payload"`
	ProcessedAt    time.Time     `json:"processed_at"`
}

// WebhookRequest is the DTO for POST /payments/webhook. Providers may send
// extra fields; the raw body is persisted separately as the payload.
type WebhookRequest struct {
	IdempotencyKey string `json:"idempotency_key" validate:"required,notblank,max=255"`
	OrderID        *int64 `json:"order_id" validate:"required,gte=1"`
	PaymentStatus  string `json:"payment_status" validate:"required,oneof=success failure"`
}

// WebhookResponse is the API response DTO for webhook deliveries.
type WebhookResponse struct {
	Message          string `json:"message"`
	AlreadyProcessed bool   `json:"already_processed"`
}
