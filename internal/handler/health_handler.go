package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the readiness of the checkout service's backends.
// The database is load-bearing; the product cache is not, so its state is
// reported but never fails the check.
type HealthHandler struct {
	db        Pinger
	cachePing func(ctx context.Context) error
}

// NewHealthHandler creates a new HealthHandler. cachePing may be nil when the
// product cache is disabled.
func NewHealthHandler(db Pinger, cachePing func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{db: db, cachePing: cachePing}
}

// Check performs a health check.
// Returns 200 OK with {"status": "healthy", "cache": ...} when the database
// is reachable; the cache field is "connected", "unavailable" or "disabled".
// Returns 503 Service Unavailable when the database is unreachable.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.db.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}

	cacheStatus := "disabled"
	if h.cachePing != nil {
		cacheStatus = "connected"
		if err := h.cachePing(c.Context()); err != nil {
			// Uncached reads still work; degraded, not unhealthy.
			log.Warn().Err(err).Msg("health check: product cache unreachable")
			cacheStatus = "unavailable"
		}
	}

	return c.JSON(fiber.Map{
		"status": "healthy",
		"cache":  cacheStatus,
	})
}
