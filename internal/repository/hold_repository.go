package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

// HoldPoolInterface defines the database operations needed by HoldRepository.
type HoldPoolInterface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// HoldRepository provides data access for holds using pgx.
type HoldRepository struct {
	pool HoldPoolInterface
}

// NewHoldRepository creates a new HoldRepository with the given pool.
func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{pool: pool}
}

// NewHoldRepositoryWithPool creates a new HoldRepository with a custom pool
// interface. This is primarily used for testing.
func NewHoldRepositoryWithPool(pool HoldPoolInterface) *HoldRepository {
	return &HoldRepository{pool: pool}
}

// Insert creates a new hold within a transaction and fills in its generated
// id and created_at.
func (r *HoldRepository) Insert(ctx context.Context, tx database.TxQuerier, h *model.Hold) error {
	query := `INSERT INTO holds (product_id, quantity, status, expires_at)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`

	err := tx.QueryRow(ctx, query, h.ProductID, h.Quantity, h.Status, h.ExpiresAt).
		Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert hold for product %d: %w", h.ProductID, err)
	}
	return nil
}

// GetForUpdate retrieves a hold with a row lock (SELECT FOR UPDATE).
// Conversion and expiry of the same hold serialise here.
// Returns service.ErrHoldNotFound if the hold doesn't exist.
func (r *HoldRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Hold, error) {
	query := `SELECT id, product_id, quantity, status, expires_at, created_at
		FROM holds WHERE id = $1 FOR UPDATE`

	var h model.Hold
	err := tx.QueryRow(ctx, query, id).Scan(
		&h.ID, &h.ProductID, &h.Quantity, &h.Status, &h.ExpiresAt, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrHoldNotFound
		}
		return nil, fmt.Errorf("get hold for update %d: %w", id, err)
	}
	return &h, nil
}

// UpdateStatus moves a hold into a terminal state. Must be called within a
// transaction after locking the row.
func (r *HoldRepository) UpdateStatus(ctx context.Context, tx database.TxQuerier, id int64, status model.HoldStatus) error {
	query := `UPDATE holds SET status = $2 WHERE id = $1`

	_, err := tx.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update hold %d status to %s: %w", id, status, err)
	}
	return nil
}

// ListExpired returns all active holds whose expires_at is before the given
// instant. The scan takes no locks: the release path re-checks each hold's
// status under lock, so a hold converted between scan and release is skipped.
func (r *HoldRepository) ListExpired(ctx context.Context, before time.Time) ([]model.Hold, error) {
	query := `SELECT id, product_id, quantity, status, expires_at, created_at
		FROM holds WHERE status = 'active' AND expires_at < $1 ORDER BY expires_at`

	rows, err := r.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()

	var holds []model.Hold
	for rows.Next() {
		var h model.Hold
		if err := rows.Scan(&h.ID, &h.ProductID, &h.Quantity, &h.Status, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expired hold: %w", err)
		}
		holds = append(holds, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired holds: %w", err)
	}

	return holds, nil
}
