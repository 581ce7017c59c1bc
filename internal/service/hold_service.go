package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

// ProductRepositoryInterface defines the interface for product data access.
type ProductRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error)
	Get(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error)
	AdjustStock(ctx context.Context, tx database.TxQuerier, id int64, delta int) error
}

// HoldRepositoryInterface defines the interface for hold data access.
type HoldRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, h *model.Hold) error
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Hold, error)
	UpdateStatus(ctx context.Context, tx database.TxQuerier, id int64, status model.HoldStatus) error
	ListExpired(ctx context.Context, before time.Time) ([]model.Hold, error)
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CacheInvalidator is the slice of the product cache the core consumes:
// invalidation only. The core never reads through the cache.
type CacheInvalidator interface {
	Forget(ctx context.Context, productID int64)
}

// HoldService owns the stock-decrement transaction: it reserves units by
// debiting product stock and creating a time-bounded hold, and returns units
// from holds that expired unconverted.
type HoldService struct {
	pool     TxBeginner
	products ProductRepositoryInterface
	holds    HoldRepositoryInterface
	cache    CacheInvalidator
	holdTTL  time.Duration
	retries  int
}

// NewHoldService creates a new HoldService.
func NewHoldService(pool *pgxpool.Pool, products ProductRepositoryInterface, holds HoldRepositoryInterface, cache CacheInvalidator, holdTTL time.Duration, retries int) *HoldService {
	return &HoldService{pool: pool, products: products, holds: holds, cache: cache, holdTTL: holdTTL, retries: retries}
}

// NewHoldServiceWithTxBeginner creates a HoldService with a custom TxBeginner.
// Primarily used for testing.
func NewHoldServiceWithTxBeginner(pool TxBeginner, products ProductRepositoryInterface, holds HoldRepositoryInterface, cache CacheInvalidator, holdTTL time.Duration, retries int) *HoldService {
	return &HoldService{pool: pool, products: products, holds: holds, cache: cache, holdTTL: holdTTL, retries: retries}
}

// CreateHold atomically reserves quantity units of a product.
// In one transaction it locks the product row, checks stock, decrements it,
// and inserts an active hold expiring holdTTL from now. Concurrent requests
// contending on the same product serialise on the row lock.
// Returns:
//   - ErrProductNotFound if the product doesn't exist
//   - *InsufficientStockError if fewer than quantity units remain
func (s *HoldService) CreateHold(ctx context.Context, productID int64, quantity int) (*model.Hold, error) {
	if quantity < 1 {
		return nil, ErrInvalidRequest
	}

	var hold *model.Hold
	err := database.WithRetry(ctx, s.retries, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

		// 1. Lock the product row (SELECT FOR UPDATE)
		product, err := s.products.GetForUpdate(ctx, tx, productID)
		if err != nil {
			return err
		}

		// 2. Check stock under lock
		if product.Stock < quantity {
			return &InsufficientStockError{Available: product.Stock}
		}

		// 3. Debit the shelf
		if err := s.products.AdjustStock(ctx, tx, productID, -quantity); err != nil {
			return err
		}

		// 4. Create the reservation
		h := &model.Hold{
			ProductID: productID,
			Quantity:  quantity,
			Status:    model.HoldStatusActive,
			ExpiresAt: time.Now().UTC().Add(s.holdTTL),
		}
		if err := s.holds.Insert(ctx, tx, h); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		hold = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Forget(ctx, productID)

	log.Info().
		Int64("hold_id", hold.ID).
		Int64("product_id", productID).
		Int("quantity", quantity).
		Time("expires_at", hold.ExpiresAt).
		Msg("hold created")
	return hold, nil
}

// ReleaseExpiredHold returns a stale hold's units to stock. It locks the
// product row, re-reads the hold under that lock, and proceeds only if the
// hold is still active: a concurrent conversion may have used the hold
// between the sweeper's scan and this transaction, and that is not an error.
// Returns true iff a release actually occurred.
func (s *HoldService) ReleaseExpiredHold(ctx context.Context, hold model.Hold) (bool, error) {
	released := false
	err := database.WithRetry(ctx, s.retries, func(ctx context.Context) error {
		released = false
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		// Lock order matters: product first, then hold, same as CreateHold.
		if _, err := s.products.GetForUpdate(ctx, tx, hold.ProductID); err != nil {
			return err
		}

		current, err := s.holds.GetForUpdate(ctx, tx, hold.ID)
		if err != nil {
			return err
		}
		if current.Status != model.HoldStatusActive {
			// Used or already expired since the scan; best-effort no-op.
			return nil
		}

		if err := s.products.AdjustStock(ctx, tx, current.ProductID, current.Quantity); err != nil {
			return err
		}
		if err := s.holds.UpdateStatus(ctx, tx, current.ID, model.HoldStatusExpired); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if released {
		s.cache.Forget(ctx, hold.ProductID)
		log.Info().
			Int64("hold_id", hold.ID).
			Int64("product_id", hold.ProductID).
			Int("quantity", hold.Quantity).
			Msg("expired hold released, stock returned")
	}
	return released, nil
}

// ExpiredHolds returns the active holds whose time budget has elapsed.
// The scan is lock-free; ReleaseExpiredHold re-checks under lock.
func (s *HoldService) ExpiredHolds(ctx context.Context) ([]model.Hold, error) {
	return s.holds.ListExpired(ctx, time.Now().UTC())
}
