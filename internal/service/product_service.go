package service

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
)

// ProductCacheReader is the read-through slice of the product cache used by
// the lookup path. Stale reads are acceptable here: the authoritative stock
// check happens under a row lock in the hold path.
type ProductCacheReader interface {
	Get(ctx context.Context, productID int64) (*model.Product, bool)
	Set(ctx context.Context, p *model.Product)
}

// ProductService serves read-only product lookups through the cache.
type ProductService struct {
	products ProductRepositoryInterface
	cache    ProductCacheReader
}

// NewProductService creates a new ProductService.
func NewProductService(products ProductRepositoryInterface, cache ProductCacheReader) *ProductService {
	return &ProductService{products: products, cache: cache}
}

// GetProduct retrieves a product by id, cache first.
// Returns ErrProductNotFound if the product doesn't exist.
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if p, ok := s.cache.Get(ctx, id); ok {
		return p, nil
	}

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, ErrProductNotFound
	}

	s.cache.Set(ctx, p)
	return p, nil
}
