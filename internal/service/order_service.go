package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

// OrderRepositoryInterface defines the interface for order data access.
type OrderRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, o *model.Order) error
	GetByID(ctx context.Context, q database.TxQuerier, id int64) (*model.Order, error)
	MarkPaid(ctx context.Context, tx database.TxQuerier, id int64, paidAt time.Time) (bool, error)
	MarkCancelled(ctx context.Context, tx database.TxQuerier, id int64) (bool, error)
}

// OrderService converts holds into orders and cancels pending orders.
// It never touches product stock on conversion: the units were already
// debited at hold time and stay debited while the order is pending.
type OrderService struct {
	pool     TxBeginner
	products ProductRepositoryInterface
	holds    HoldRepositoryInterface
	orders   OrderRepositoryInterface
	cache    CacheInvalidator
	retries  int
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool *pgxpool.Pool, products ProductRepositoryInterface, holds HoldRepositoryInterface, orders OrderRepositoryInterface, cache CacheInvalidator, retries int) *OrderService {
	return &OrderService{pool: pool, products: products, holds: holds, orders: orders, cache: cache, retries: retries}
}

// NewOrderServiceWithTxBeginner creates an OrderService with a custom
// TxBeginner. Primarily used for testing.
func NewOrderServiceWithTxBeginner(pool TxBeginner, products ProductRepositoryInterface, holds HoldRepositoryInterface, orders OrderRepositoryInterface, cache CacheInvalidator, retries int) *OrderService {
	return &OrderService{pool: pool, products: products, holds: holds, orders: orders, cache: cache, retries: retries}
}

// CreateOrderFromHold converts a still-valid hold into a pending order and
// retires the hold. In one transaction it locks the hold row, verifies the
// hold is active and unexpired, prices the order with decimal arithmetic,
// inserts the order, and marks the hold used. Two conversions racing past
// the pre-checks are settled by the UNIQUE constraint on orders.hold_id.
// Returns:
//   - ErrHoldNotFound if the hold doesn't exist
//   - *HoldNotActiveError if the hold is used or expired
//   - ErrHoldExpired if expires_at has passed (even if nominally active)
//   - ErrHoldAlreadyUsed if an order already exists for this hold
func (s *OrderService) CreateOrderFromHold(ctx context.Context, holdID int64) (*model.Order, error) {
	var order *model.Order
	err := database.WithRetry(ctx, s.retries, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

		// 1. Lock the hold row; conversion and expiry serialise here.
		hold, err := s.holds.GetForUpdate(ctx, tx, holdID)
		if err != nil {
			return err
		}
		if hold.Status != model.HoldStatusActive {
			return &HoldNotActiveError{Status: hold.Status}
		}
		// The sweeper may not have caught it yet; expires_at == now counts
		// as expired.
		if !hold.ExpiresAt.After(time.Now().UTC()) {
			return ErrHoldExpired
		}

		// 2. Price against the product. Plain read: stock does not move here.
		product, err := s.products.Get(ctx, tx, hold.ProductID)
		if err != nil {
			return err
		}
		total := product.Price.Mul(decimal.NewFromInt(int64(hold.Quantity)))

		// 3. Insert the order; UNIQUE(hold_id) is the race backstop.
		o := &model.Order{
			HoldID:     hold.ID,
			ProductID:  hold.ProductID,
			Quantity:   hold.Quantity,
			TotalPrice: total,
			Status:     model.OrderStatusPending,
		}
		if err := s.orders.Insert(ctx, tx, o); err != nil {
			return err
		}

		// 4. Retire the hold.
		if err := s.holds.UpdateStatus(ctx, tx, hold.ID, model.HoldStatusUsed); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("order_id", order.ID).
		Int64("hold_id", holdID).
		Str("total_price", order.TotalPrice.StringFixed(2)).
		Msg("order created from hold")
	return order, nil
}

// CancelOrder cancels a pending order in its own transaction and returns its
// units to stock. Any other status is a no-op returning false: cancellation
// is idempotent. The linked hold stays used.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) (bool, error) {
	cancelled := false
	var productID int64
	err := database.WithRetry(ctx, s.retries, func(ctx context.Context) error {
		cancelled = false
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		order, err := s.orders.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil || order.Status != model.OrderStatusPending {
			return nil
		}

		cancelled, err = s.cancelInTx(ctx, tx, order)
		if err != nil {
			return err
		}
		productID = order.ProductID

		return tx.Commit(ctx)
	})
	if err != nil {
		return false, err
	}

	if cancelled {
		s.cache.Forget(ctx, productID)
	}
	return cancelled, nil
}

// CancelOrderInTx cancels a pending order inside a caller-owned transaction.
// The webhook processor uses this so the cancellation commits atomically
// with its log row. The caller is responsible for invalidating the product
// cache after commit.
func (s *OrderService) CancelOrderInTx(ctx context.Context, tx database.TxQuerier, order *model.Order) (bool, error) {
	return s.cancelInTx(ctx, tx, order)
}

func (s *OrderService) cancelInTx(ctx context.Context, tx database.TxQuerier, order *model.Order) (bool, error) {
	if order == nil || order.Status != model.OrderStatusPending {
		return false, nil
	}

	// Lock the product row before moving stock back.
	if _, err := s.products.GetForUpdate(ctx, tx, order.ProductID); err != nil {
		return false, err
	}

	// Status first: the pending guard on the UPDATE makes a lost race a
	// clean no-op with no stock movement to undo.
	changed, err := s.orders.MarkCancelled(ctx, tx, order.ID)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	if err := s.products.AdjustStock(ctx, tx, order.ProductID, order.Quantity); err != nil {
		return false, err
	}

	log.Info().
		Int64("order_id", order.ID).
		Int64("product_id", order.ProductID).
		Int("quantity", order.Quantity).
		Msg("order cancelled, stock returned")
	return true, nil
}
