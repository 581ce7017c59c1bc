// Package cache implements the product cache collaborator on Redis.
// The cache is a performance aid, never a source of truth: every committed
// stock mutation invalidates, and the authoritative stock check always
// happens under a database row lock. When no Redis server is reachable the
// cache degrades to a no-op and every read is a miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flash-sale-checkout/internal/config"
	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
)

// NewRedisClient connects to Redis using the given configuration.
// Returns nil when caching is disabled or the server is unreachable;
// callers degrade gracefully by running uncached.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled || cfg.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable, product cache disabled")
		_ = client.Close()
		return nil
	}

	log.Info().Str("addr", cfg.Addr).Msg("product cache connected")
	return client
}

// ProductCache caches products by id with a TTL.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache creates a ProductCache. A nil client yields a no-op cache.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

// Key returns the cache key for a product id.
func Key(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}

// Get returns the cached product and whether it was present.
// Cache errors are logged and reported as misses.
func (c *ProductCache) Get(ctx context.Context, productID int64) (*model.Product, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, Key(productID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Int64("product_id", productID).Msg("product cache get failed")
		}
		return nil, false
	}

	var p model.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Int64("product_id", productID).Msg("product cache entry corrupt")
		return nil, false
	}
	return &p, true
}

// Set stores a product for the configured TTL. Best-effort.
func (c *ProductCache) Set(ctx context.Context, p *model.Product) {
	if c == nil || c.client == nil || p == nil {
		return
	}

	raw, err := json.Marshal(p)
	if err != nil {
		log.Warn().Err(err).Int64("product_id", p.ID).Msg("product cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, Key(p.ID), raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Int64("product_id", p.ID).Msg("product cache set failed")
	}
}

// Forget invalidates a product's cache entry. Called after every committed
// transaction that changed the product's stock.
func (c *ProductCache) Forget(ctx context.Context, productID int64) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Del(ctx, Key(productID)).Err(); err != nil {
		log.Warn().Err(err).Int64("product_id", productID).Msg("product cache invalidation failed")
	}
}
