// Package sessions holds login-session bookkeeping and the periodic sweep
// that revokes expired sessions.
package sessions

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store is the data access the sweeper needs.
type Store interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper deactivates expired sessions on a fixed interval. It holds no locks
// shared with request handling; each sweep is a single UPDATE. Run returns
// when the context is cancelled.
type Sweeper struct {
	store    Store
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. A nil clock means time.Now.
func NewSweeper(store Store, interval time.Duration, clock func() time.Time, logger *zap.Logger) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, interval: interval, now: clock, logger: logger}
}

// Run sweeps forever at the configured interval until ctx is cancelled.
// Store errors are logged and the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("session sweeper started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce revokes currently-expired sessions.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	revoked, err := s.store.DeactivateExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return
	}
	if revoked > 0 {
		s.logger.Info("revoked expired sessions", zap.Int64("count", revoked))
	}
}
