package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

// Webhook result messages. These strings are part of the API contract.
const (
	MsgWebhookAlreadyProcessed = "Webhook already processed"
	MsgPaymentSuccess          = "Payment successful, order marked as paid"
	MsgPaymentFailure          = "Payment failed, order cancelled and stock returned"
)

// WebhookRepositoryInterface defines the interface for webhook log access.
type WebhookRepositoryInterface interface {
	GetByKey(ctx context.Context, key string) (*model.WebhookLog, error)
	Insert(ctx context.Context, tx database.TxQuerier, wl *model.WebhookLog) error
	AttachOrder(ctx context.Context, tx database.TxQuerier, id, orderID int64) error
}

// OrderSettler is the slice of the order manager the webhook processor
// consumes: cancellation inside its own transaction.
type OrderSettler interface {
	CancelOrderInTx(ctx context.Context, tx database.TxQuerier, order *model.Order) (bool, error)
}

// WebhookService settles or cancels orders from out-of-band payment
// outcomes. Correctness survives arbitrary retries, out-of-order arrival
// relative to order creation, and interleaved deliveries of the same key.
type WebhookService struct {
	pool     TxBeginner
	webhooks WebhookRepositoryInterface
	orders   OrderRepositoryInterface
	settler  OrderSettler
	cache    CacheInvalidator
	retries  int
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(pool *pgxpool.Pool, webhooks WebhookRepositoryInterface, orders OrderRepositoryInterface, settler OrderSettler, cache CacheInvalidator, retries int) *WebhookService {
	return &WebhookService{pool: pool, webhooks: webhooks, orders: orders, settler: settler, cache: cache, retries: retries}
}

// NewWebhookServiceWithTxBeginner creates a WebhookService with a custom
// TxBeginner. Primarily used for testing.
func NewWebhookServiceWithTxBeginner(pool TxBeginner, webhooks WebhookRepositoryInterface, orders OrderRepositoryInterface, settler OrderSettler, cache CacheInvalidator, retries int) *WebhookService {
	return &WebhookService{pool: pool, webhooks: webhooks, orders: orders, settler: settler, cache: cache, retries: retries}
}

// ProcessWebhook processes one payment webhook delivery idempotently.
//
// The fast path looks the key up outside any transaction; a committed log
// means the delivery is a replay and is ignored regardless of its payload.
// Otherwise the log row is inserted inside a transaction, with the UNIQUE
// constraint on idempotency_key as the linearisation point: the fast path
// can miss a concurrent delivery of the same key, but at most one of the
// two inserts commits.
//
// If the order does not exist yet the log commits with a NULL order_id, so
// retries of this key are suppressed, and ErrOrderNotFound is returned.
// Any internal failure rolls the log back too: a transient error must not
// absorb the provider's retry.
func (s *WebhookService) ProcessWebhook(ctx context.Context, req *model.WebhookRequest, payload []byte) (*model.WebhookResponse, error) {
	if req == nil || req.OrderID == nil {
		return nil, ErrInvalidRequest
	}

	// 1. Fast path: a committed log wins over whatever this retry says.
	existing, err := s.webhooks.GetByKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("lookup webhook log: %w", err)
	}
	if existing != nil {
		return &model.WebhookResponse{Message: MsgWebhookAlreadyProcessed, AlreadyProcessed: true}, nil
	}

	status := model.PaymentStatus(req.PaymentStatus)
	switch status {
	case model.PaymentStatusSuccess, model.PaymentStatusFailure:
	default:
		// Edge validation is authoritative; this is an assertion.
		return nil, fmt.Errorf("%w: payment_status %q", ErrInvalidRequest, req.PaymentStatus)
	}

	var resp *model.WebhookResponse
	var cancelledProduct int64
	err = database.WithRetry(ctx, s.retries, func(ctx context.Context) error {
		resp = nil
		cancelledProduct = 0

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

		// 2. Insert the log; UNIQUE(idempotency_key) closes the fast-path gap.
		wl := &model.WebhookLog{
			IdempotencyKey: req.IdempotencyKey,
			Status:         status,
			Payload:        payload,
		}
		if err := s.webhooks.Insert(ctx, tx, wl); err != nil {
			return err
		}

		// 3. Look the order up inside the transaction.
		order, err := s.orders.GetByID(ctx, tx, *req.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			// Webhook arrived before its order. Commit the log with a NULL
			// order_id so retries of this key are suppressed; operators
			// reconcile these rows out-of-band.
			if err := tx.Commit(ctx); err != nil {
				return fmt.Errorf("commit tx: %w", err)
			}
			return ErrOrderNotFound
		}

		if err := s.webhooks.AttachOrder(ctx, tx, wl.ID, order.ID); err != nil {
			return err
		}

		// 4. Dispatch.
		switch status {
		case model.PaymentStatusSuccess:
			if _, err := s.orders.MarkPaid(ctx, tx, order.ID, time.Now().UTC()); err != nil {
				return err
			}
			resp = &model.WebhookResponse{Message: MsgPaymentSuccess}
		case model.PaymentStatusFailure:
			cancelled, err := s.settler.CancelOrderInTx(ctx, tx, order)
			if err != nil {
				return err
			}
			if cancelled {
				cancelledProduct = order.ProductID
			}
			resp = &model.WebhookResponse{Message: MsgPaymentFailure}
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateWebhook) {
			// Lost the insert race against another delivery of this key.
			return &model.WebhookResponse{Message: MsgWebhookAlreadyProcessed, AlreadyProcessed: true}, nil
		}
		return nil, err
	}

	if cancelledProduct != 0 {
		s.cache.Forget(ctx, cancelledProduct)
	}

	log.Info().
		Str("idempotency_key", req.IdempotencyKey).
		Int64("order_id", *req.OrderID).
		Str("payment_status", string(status)).
		Msg("webhook processed")
	return resp, nil
}
