package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProductRepository provides data access for products using pgx.
type ProductRepository struct {
	pool PoolInterface
}

// NewProductRepository creates a new ProductRepository with the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// NewProductRepositoryWithPool creates a new ProductRepository with a custom
// pool interface. This is primarily used for testing.
func NewProductRepositoryWithPool(pool PoolInterface) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// scanProduct scans one product row. The price column is selected as text so
// that NUMERIC round-trips into decimal.Decimal without binary-float loss.
func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	var price string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = d
	return &p, nil
}

// GetByID retrieves a product by its id.
// Returns nil, nil if the product is not found (service layer handles this).
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	query := `SELECT id, name, description, price::text, stock, created_at FROM products WHERE id = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// GetForUpdate retrieves a product with an exclusive row lock
// (SELECT FOR UPDATE). The row stays locked until the transaction completes;
// concurrent stock mutations on the same product serialise here.
// Returns service.ErrProductNotFound if the product doesn't exist.
func (r *ProductRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
	query := `SELECT id, name, description, price::text, stock, created_at FROM products WHERE id = $1 FOR UPDATE`

	p, err := scanProduct(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product for update %d: %w", id, err)
	}
	return p, nil
}

// Get retrieves a product inside a transaction without locking it.
// Used by the order path, which prices against the product but never moves
// its stock. Returns service.ErrProductNotFound if the product doesn't exist.
func (r *ProductRepository) Get(ctx context.Context, tx database.TxQuerier, id int64) (*model.Product, error) {
	query := `SELECT id, name, description, price::text, stock, created_at FROM products WHERE id = $1`

	p, err := scanProduct(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product in tx %d: %w", id, err)
	}
	return p, nil
}

// AdjustStock changes a product's stock by delta (negative to reserve units,
// positive to return them). Must be called within a transaction after
// locking the row; the CHECK (stock >= 0) constraint is the final backstop.
func (r *ProductRepository) AdjustStock(ctx context.Context, tx database.TxQuerier, id int64, delta int) error {
	query := `UPDATE products SET stock = stock + $2 WHERE id = $1`

	_, err := tx.Exec(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("adjust stock for product %d by %d: %w", id, delta, err)
	}
	return nil
}

// Insert creates a new product and fills in its generated id.
// Used by seeding; the core never creates products.
func (r *ProductRepository) Insert(ctx context.Context, p *model.Product) error {
	query := `INSERT INTO products (name, description, price, stock) VALUES ($1, $2, $3, $4) RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, p.Name, p.Description, p.Price.StringFixed(2), p.Stock).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert product %q: %w", p.Name, err)
	}
	return nil
}
