// Package sweeper returns stock from holds whose time budget elapsed before
// they were converted. It is the only time-driven entry into the hold
// manager's release path.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
)

// HoldReleaser is the slice of the hold manager the sweeper consumes.
type HoldReleaser interface {
	ExpiredHolds(ctx context.Context) ([]model.Hold, error)
	ReleaseExpiredHold(ctx context.Context, hold model.Hold) (bool, error)
}

// Sweeper periodically scans for stale active holds and feeds them into the
// release path. It is best-effort: per-hold failures are logged and the tick
// continues, and a hold that was converted between scan and release is a
// silent no-op inside the release transaction.
type Sweeper struct {
	holds  HoldReleaser
	period time.Duration
}

// New creates a Sweeper. The period should be at most half the hold TTL so
// an expired hold is released within one TTL of going stale.
func New(holds HoldReleaser, period time.Duration) *Sweeper {
	return &Sweeper{holds: holds, period: period}
}

// Run ticks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("period", s.period).Msg("sweeper started")
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one tick: scan stale active holds, release each.
// Returns the number of holds actually released.
func (s *Sweeper) Sweep(ctx context.Context) int {
	holds, err := s.holds.ExpiredHolds(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sweeper scan failed")
		return 0
	}
	if len(holds) == 0 {
		return 0
	}

	released := 0
	for _, h := range holds {
		ok, err := s.holds.ReleaseExpiredHold(ctx, h)
		if err != nil {
			log.Error().Err(err).Int64("hold_id", h.ID).Msg("failed to release expired hold")
			continue
		}
		if ok {
			released++
		}
	}

	log.Info().
		Int("scanned", len(holds)).
		Int("released", released).
		Msg("sweep completed")
	return released
}
