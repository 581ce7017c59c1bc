package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

// OrderRepository provides data access for orders using pgx.
// All methods run against a caller-owned transaction: orders are only ever
// touched inside the conversion, cancellation, and webhook transactions.
type OrderRepository struct{}

// NewOrderRepository creates a new OrderRepository.
// The pgxpool parameter keeps construction uniform with the other
// repositories in cmd wiring.
func NewOrderRepository(_ *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{}
}

// Insert creates a new order within a transaction and fills in its generated
// id and created_at. The UNIQUE constraint on hold_id is the structural
// guarantee that a hold produces at most one order: a duplicate-key
// violation here means a concurrent conversion won the race.
// Returns service.ErrHoldAlreadyUsed on that violation.
func (r *OrderRepository) Insert(ctx context.Context, tx database.TxQuerier, o *model.Order) error {
	query := `INSERT INTO orders (hold_id, product_id, quantity, total_price, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`

	err := tx.QueryRow(ctx, query,
		o.HoldID, o.ProductID, o.Quantity, o.TotalPrice.StringFixed(2), o.Status).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrHoldAlreadyUsed
		}
		return fmt.Errorf("insert order for hold %d: %w", o.HoldID, err)
	}
	return nil
}

// GetByID retrieves an order. Accepts any querier so it can run inside the
// webhook transaction. Returns nil, nil if the order is not found.
func (r *OrderRepository) GetByID(ctx context.Context, q database.TxQuerier, id int64) (*model.Order, error) {
	query := `SELECT id, hold_id, product_id, quantity, total_price::text, status, paid_at, created_at
		FROM orders WHERE id = $1`

	var o model.Order
	var total string
	err := q.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.HoldID, &o.ProductID, &o.Quantity, &total, &o.Status, &o.PaidAt, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}

	d, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total_price %q: %w", total, err)
	}
	o.TotalPrice = d
	return &o, nil
}

// MarkPaid transitions a pending order to paid and records the payment
// instant. The status guard keeps terminal orders immutable even if a fresh
// idempotency key replays a settled payment. Returns true iff a row changed.
func (r *OrderRepository) MarkPaid(ctx context.Context, tx database.TxQuerier, id int64, paidAt time.Time) (bool, error) {
	query := `UPDATE orders SET status = 'paid', paid_at = $2 WHERE id = $1 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, id, paidAt)
	if err != nil {
		return false, fmt.Errorf("mark order %d paid: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCancelled transitions a pending order to cancelled.
// Returns true iff a row changed.
func (r *OrderRepository) MarkCancelled(ctx context.Context, tx database.TxQuerier, id int64) (bool, error) {
	query := `UPDATE orders SET status = 'cancelled' WHERE id = $1 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark order %d cancelled: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
