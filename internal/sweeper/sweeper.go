// Package sweeper runs the periodic audit retention sweep.
package sweeper

import (
	"context"
	"time"

	"casedesk.io/internal/obs"
)

// Sweepable is the subset of the audit recorder the sweeper needs.
type Sweepable interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper deletes expired audit entries on a fixed interval.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
}

// New constructs a Sweeper. Intervals below one minute are clamped.
func New(target Sweepable, interval time.Duration) *Sweeper {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Sweeper{target: target, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once immediately and then on
// every tick. Intended to be launched as a goroutine from main.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.target.SweepExpired(ctx)
	if err != nil {
		obs.Log("error", "audit retention sweep failed", map[string]any{"error": err.Error()})
		return
	}
	if deleted > 0 {
		obs.Log("info", "audit retention sweep", map[string]any{"deleted": deleted})
	}
}
