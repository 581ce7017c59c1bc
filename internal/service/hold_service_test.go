package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

// mockProductRepository is a mock implementation of ProductRepositoryInterface.
type mockProductRepository struct {
	getByIDFn      func(ctx context.Context, id int64) (*model.Product, error)
	getForUpdateFn func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error)
	getFn          func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error)
	adjustStockFn  func(ctx context.Context, tx database.TxQuerier, id int64, delta int) error
}

func (m *mockProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockProductRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, tx, id)
	}
	return &model.Product{ID: id, Stock: 100}, nil
}

func (m *mockProductRepository) Get(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
	if m.getFn != nil {
		return m.getFn(ctx, tx, id)
	}
	return &model.Product{ID: id, Stock: 100}, nil
}

func (m *mockProductRepository) AdjustStock(ctx context.Context, tx database.TxQuerier, id int64, delta int) error {
	if m.adjustStockFn != nil {
		return m.adjustStockFn(ctx, tx, id, delta)
	}
	return nil
}

// mockHoldRepository is a mock implementation of HoldRepositoryInterface.
type mockHoldRepository struct {
	insertFn       func(ctx context.Context, tx database.TxQuerier, h *model.Hold) error
	getForUpdateFn func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Hold, error)
	updateStatusFn func(ctx context.Context, tx database.TxQuerier, id int64, status model.HoldStatus) error
	listExpiredFn  func(ctx context.Context, before time.Time) ([]model.Hold, error)
}

func (m *mockHoldRepository) Insert(ctx context.Context, tx database.TxQuerier, h *model.Hold) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, h)
	}
	h.ID = 1
	return nil
}

func (m *mockHoldRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Hold, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, tx, id)
	}
	return nil, ErrHoldNotFound
}

func (m *mockHoldRepository) UpdateStatus(ctx context.Context, tx database.TxQuerier, id int64, status model.HoldStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, tx, id, status)
	}
	return nil
}

func (m *mockHoldRepository) ListExpired(ctx context.Context, before time.Time) ([]model.Hold, error) {
	if m.listExpiredFn != nil {
		return m.listExpiredFn(ctx, before)
	}
	return nil, nil
}

// mockOrderRepository is a mock implementation of OrderRepositoryInterface.
type mockOrderRepository struct {
	insertFn        func(ctx context.Context, tx database.TxQuerier, o *model.Order) error
	getByIDFn       func(ctx context.Context, q database.TxQuerier, id int64) (*model.Order, error)
	markPaidFn      func(ctx context.Context, tx database.TxQuerier, id int64, paidAt time.Time) (bool, error)
	markCancelledFn func(ctx context.Context, tx database.TxQuerier, id int64) (bool, error)
}

func (m *mockOrderRepository) Insert(ctx context.Context, tx database.TxQuerier, o *model.Order) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, o)
	}
	o.ID = 1
	return nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, q database.TxQuerier, id int64) (*model.Order, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, q, id)
	}
	return nil, nil
}

func (m *mockOrderRepository) MarkPaid(ctx context.Context, tx database.TxQuerier, id int64, paidAt time.Time) (bool, error) {
	if m.markPaidFn != nil {
		return m.markPaidFn(ctx, tx, id, paidAt)
	}
	return true, nil
}

func (m *mockOrderRepository) MarkCancelled(ctx context.Context, tx database.TxQuerier, id int64) (bool, error) {
	if m.markCancelledFn != nil {
		return m.markCancelledFn(ctx, tx, id)
	}
	return true, nil
}

// mockCache records invalidations and serves canned cache reads. It covers
// both the CacheInvalidator and ProductCacheReader slices.
type mockCache struct {
	forgotten []int64
	getFn     func(ctx context.Context, productID int64) (*model.Product, bool)
	set       []*model.Product
}

func (m *mockCache) Forget(ctx context.Context, productID int64) {
	m.forgotten = append(m.forgotten, productID)
}

func (m *mockCache) Get(ctx context.Context, productID int64) (*model.Product, bool) {
	if m.getFn != nil {
		return m.getFn(ctx, productID)
	}
	return nil, false
}

func (m *mockCache) Set(ctx context.Context, p *model.Product) {
	m.set = append(m.set, p)
}

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

func singleTx(tx pgx.Tx) *mockTxBeginner {
	return &mockTxBeginner{beginFn: func(ctx context.Context) (pgx.Tx, error) { return tx, nil }}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestHoldService_CreateHold_Success(t *testing.T) {
	var capturedHold *model.Hold
	var capturedDelta int
	mockProductRepo := &mockProductRepository{
		getForUpdateFn: func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
			return &model.Product{ID: id, Name: "Limited Edition Sneaker", Stock: 100}, nil
		},
		adjustStockFn: func(ctx context.Context, tx database.TxQuerier, id int64, delta int) error {
			capturedDelta = delta
			return nil
		},
	}
	mockHoldRepo := &mockHoldRepository{
		insertFn: func(ctx context.Context, tx database.TxQuerier, h *model.Hold) error {
			h.ID = 42
			capturedHold = h
			return nil
		},
	}
	cache := &mockCache{}

	before := time.Now().UTC()
	svc := NewHoldServiceWithTxBeginner(singleTx(&mockTx{}), mockProductRepo, mockHoldRepo, cache, 2*time.Minute, 3)
	hold, err := svc.CreateHold(context.Background(), 1, 5)

	require.NoError(t, err)
	require.NotNil(t, hold)
	assert.Equal(t, int64(42), hold.ID)
	assert.Equal(t, -5, capturedDelta, "stock should be debited by the held quantity")
	assert.Equal(t, model.HoldStatusActive, capturedHold.Status)
	assert.True(t, capturedHold.ExpiresAt.After(before.Add(time.Minute)), "expiry should be TTL from now")
	assert.Equal(t, []int64{1}, cache.forgotten, "product cache should be invalidated after commit")
}

func TestHoldService_CreateHold_ProductNotFound(t *testing.T) {
	mockProductRepo := &mockProductRepository{
		getForUpdateFn: func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
			return nil, ErrProductNotFound
		},
	}
	cache := &mockCache{}

	svc := NewHoldServiceWithTxBeginner(singleTx(&mockTx{}), mockProductRepo, &mockHoldRepository{}, cache, 2*time.Minute, 3)
	hold, err := svc.CreateHold(context.Background(), 999, 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Nil(t, hold)
	assert.Empty(t, cache.forgotten, "failed reservation must not invalidate the cache")
}

func TestHoldService_CreateHold_InsufficientStock(t *testing.T) {
	adjustCalled := false
	mockProductRepo := &mockProductRepository{
		getForUpdateFn: func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
			return &model.Product{ID: id, Stock: 3}, nil
		},
		adjustStockFn: func(ctx context.Context, tx database.TxQuerier, id int64, delta int) error {
			adjustCalled = true
			return nil
		},
	}

	svc := NewHoldServiceWithTxBeginner(singleTx(&mockTx{}), mockProductRepo, &mockHoldRepository{}, &mockCache{}, 2*time.Minute, 3)
	hold, err := svc.CreateHold(context.Background(), 1, 5)

	require.Error(t, err)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)
	assert.Nil(t, hold)
	assert.False(t, adjustCalled, "stock must not move when the check fails")
}

func TestHoldService_CreateHold_InvalidQuantity(t *testing.T) {
	svc := NewHoldServiceWithTxBeginner(&mockTxBeginner{}, &mockProductRepository{}, &mockHoldRepository{}, &mockCache{}, 2*time.Minute, 3)
	hold, err := svc.CreateHold(context.Background(), 1, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Nil(t, hold)
}

func TestHoldService_CreateHold_RollbackOnFailure(t *testing.T) {
	rollbackCalled := false
	tx := &mockTx{
		rollbackFn: func(ctx context.Context) error {
			rollbackCalled = true
			return nil
		},
	}
	mockProductRepo := &mockProductRepository{
		getForUpdateFn: func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
			return nil, ErrProductNotFound
		},
	}

	svc := NewHoldServiceWithTxBeginner(singleTx(tx), mockProductRepo, &mockHoldRepository{}, &mockCache{}, 2*time.Minute, 3)
	_, err := svc.CreateHold(context.Background(), 1, 1)

	require.Error(t, err)
	assert.True(t, rollbackCalled, "rollback should be called on failure")
}

func TestHoldService_CreateHold_BeginTxError(t *testing.T) {
	txErr := errors.New("database connection pool exhausted")
	mockPool := &mockTxBeginner{
		beginFn: func(ctx context.Context) (pgx.Tx, error) {
			return nil, txErr
		},
	}

	svc := NewHoldServiceWithTxBeginner(mockPool, &mockProductRepository{}, &mockHoldRepository{}, &mockCache{}, 2*time.Minute, 3)
	_, err := svc.CreateHold(context.Background(), 1, 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx", "error should mention transaction begin")
}

func TestHoldService_CreateHold_RetriesTransientError(t *testing.T) {
	attempts := 0
	mockProductRepo := &mockProductRepository{
		getForUpdateFn: func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
			attempts++
			if attempts < 3 {
				return nil, &pgconn.PgError{Code: "40001", Message: "serialization failure"}
			}
			return &model.Product{ID: id, Stock: 10}, nil
		},
	}

	svc := NewHoldServiceWithTxBeginner(singleTx(&mockTx{}), mockProductRepo, &mockHoldRepository{}, &mockCache{}, 2*time.Minute, 3)
	hold, err := svc.CreateHold(context.Background(), 1, 1)

	require.NoError(t, err, "serialization failures inside the retry budget should be absorbed")
	require.NotNil(t, hold)
	assert.Equal(t, 3, attempts)
}

func TestHoldService_ReleaseExpiredHold_Success(t *testing.T) {
	var capturedDelta int
	var capturedStatus model.HoldStatus
	mockProductRepo := &mockProductRepository{
		adjustStockFn: func(ctx context.Context, tx database.TxQuerier, id int64, delta int) error {
			capturedDelta = delta
			return nil
		},
	}
	mockHoldRepo := &mockHoldRepository{
		getForUpdateFn: func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Hold, error) {
			return &model.Hold{
				ID:        7,
				ProductID: 1,
				Quantity:  4,
				Status:    model.HoldStatusActive,
				ExpiresAt: time.Now().UTC().Add(-time.Minute),
			}, nil
		},
		updateStatusFn: func(ctx context.Context, tx database.TxQuerier, id int64, status model.HoldStatus) error {
			capturedStatus = status
			return nil
		},
	}
	cache := &mockCache{}

	svc := NewHoldServiceWithTxBeginner(singleTx(&mockTx{}), mockProductRepo, mockHoldRepo, cache, 2*time.Minute, 3)
	released, err := svc.ReleaseExpiredHold(context.Background(), model.Hold{ID: 7, ProductID: 1, Quantity: 4})

	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, 4, capturedDelta, "held units should return to stock")
	assert.Equal(t, model.HoldStatusExpired, capturedStatus)
	assert.Equal(t, []int64{1}, cache.forgotten)
}

func TestHoldService_ReleaseExpiredHold_AlreadyConverted(t *testing.T) {
	adjustCalled := false
	mockProductRepo := &mockProductRepository{
		adjustStockFn: func(ctx context.Context, tx database.TxQuerier, id int64, delta int) error {
			adjustCalled = true
			return nil
		},
	}
	mockHoldRepo := &mockHoldRepository{
		getForUpdateFn: func(ctx context.Context, tx database.TxQuerier, id int64) (*model.Hold, error) {
			// An order conversion won the race between scan and release.
			return &model.Hold{ID: 7, ProductID: 1, Quantity: 4, Status: model.HoldStatusUsed}, nil
		},
	}
	cache := &mockCache{}

	svc := NewHoldServiceWithTxBeginner(singleTx(&mockTx{}), mockProductRepo, mockHoldRepo, cache, 2*time.Minute, 3)
	released, err := svc.ReleaseExpiredHold(context.Background(), model.Hold{ID: 7, ProductID: 1, Quantity: 4})

	require.NoError(t, err, "losing the race to a conversion is not an error")
	assert.False(t, released)
	assert.False(t, adjustCalled, "used hold must not return stock")
	assert.Empty(t, cache.forgotten)
}

func TestHoldService_ExpiredHolds(t *testing.T) {
	var capturedBefore time.Time
	mockHoldRepo := &mockHoldRepository{
		listExpiredFn: func(ctx context.Context, before time.Time) ([]model.Hold, error) {
			capturedBefore = before
			return []model.Hold{{ID: 1}, {ID: 2}}, nil
		},
	}

	svc := NewHoldServiceWithTxBeginner(&mockTxBeginner{}, &mockProductRepository{}, mockHoldRepo, &mockCache{}, 2*time.Minute, 3)
	holds, err := svc.ExpiredHolds(context.Background())

	require.NoError(t, err)
	assert.Len(t, holds, 2)
	assert.WithinDuration(t, time.Now().UTC(), capturedBefore, 5*time.Second)
}
