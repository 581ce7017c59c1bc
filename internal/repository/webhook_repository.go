package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

// WebhookRepository provides data access for webhook logs using pgx.
// Logs are append-only: rows are inserted and optionally linked to an order
// inside the same transaction, never mutated afterwards.
type WebhookRepository struct {
	pool PoolInterface
}

// NewWebhookRepository creates a new WebhookRepository with the given pool.
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

// NewWebhookRepositoryWithPool creates a new WebhookRepository with a custom
// pool interface. This is primarily used for testing.
func NewWebhookRepositoryWithPool(pool PoolInterface) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

// GetByKey retrieves a webhook log by its idempotency key.
// Returns nil, nil if no delivery with this key has committed.
func (r *WebhookRepository) GetByKey(ctx context.Context, key string) (*model.WebhookLog, error) {
	query := `SELECT id, idempotency_key, order_id, status, payload, processed_at
		FROM webhook_logs WHERE idempotency_key = $1`

	var wl model.WebhookLog
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&wl.ID, &wl.IdempotencyKey, &wl.OrderID, &wl.Status, &wl.Payload, &wl.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get webhook log %q: %w", key, err)
	}
	return &wl, nil
}

// Insert creates a webhook log row within a transaction. The UNIQUE
// constraint on idempotency_key is the linearisation point for a delivery:
// of two concurrent deliveries of the same key, at most one insert commits.
// Returns service.ErrDuplicateWebhook on the duplicate-key violation.
func (r *WebhookRepository) Insert(ctx context.Context, tx database.TxQuerier, wl *model.WebhookLog) error {
	query := `INSERT INTO webhook_logs (idempotency_key, order_id, status, payload)
		VALUES ($1, $2, $3, $4) RETURNING id, processed_at`

	err := tx.QueryRow(ctx, query, wl.IdempotencyKey, wl.OrderID, wl.Status, wl.Payload).
		Scan(&wl.ID, &wl.ProcessedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrDuplicateWebhook
		}
		return fmt.Errorf("insert webhook log %q: %w", wl.IdempotencyKey, err)
	}
	return nil
}

// AttachOrder links a webhook log to the order it settled, within the same
// transaction that inserted the log.
func (r *WebhookRepository) AttachOrder(ctx context.Context, tx database.TxQuerier, id, orderID int64) error {
	query := `UPDATE webhook_logs SET order_id = $2 WHERE id = $1`

	_, err := tx.Exec(ctx, query, id, orderID)
	if err != nil {
		return fmt.Errorf("attach order %d to webhook log %d: %w", orderID, id, err)
	}
	return nil
}
