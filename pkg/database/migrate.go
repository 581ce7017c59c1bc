package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// schema defines the four core tables. Kept idempotent so that entrypoints
// and test harnesses can call Migrate unconditionally at startup.
//
// The UNIQUE constraint on orders.hold_id and the UNIQUE constraint on
// webhook_logs.idempotency_key are load-bearing: they are the structural
// guarantees behind hold-to-order uniqueness and webhook idempotency.
const schema = `
	CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		stock INTEGER NOT NULL CHECK (stock >= 0),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS holds (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		status VARCHAR(16) NOT NULL DEFAULT 'active'
			CHECK (status IN ('active', 'used', 'expired')),
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_holds_status_expires_at
		ON holds(status, expires_at);

	CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		hold_id BIGINT NOT NULL UNIQUE REFERENCES holds(id),
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		total_price NUMERIC(12,2) NOT NULL CHECK (total_price >= 0),
		status VARCHAR(16) NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'paid', 'cancelled')),
		paid_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS webhook_logs (
		id BIGSERIAL PRIMARY KEY,
		idempotency_key VARCHAR(255) NOT NULL UNIQUE,
		order_id BIGINT REFERENCES orders(id),
		status VARCHAR(16) NOT NULL CHECK (status IN ('success', 'failure')),
		payload JSONB NOT NULL,
		processed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
`

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, q TxQuerier) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("database schema ready")
	return nil
}
