// Package scheduler drives time-based auction termination: a fixed-rate
// sweep that ends every auction whose end time has passed.
package scheduler

import (
	"context"
	"time"

	"github.com/sellio/bidcore/internal/engine"
	"github.com/sellio/bidcore/pkg/logger"
)

type Scheduler struct {
	engine   *engine.Engine
	interval time.Duration
	log      *logger.Logger
}

func New(e *engine.Engine, interval time.Duration, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{engine: e, interval: interval, log: log}
}

// Run sweeps expired auctions until ctx is cancelled. Blocking; callers
// start it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Infof("[SCHEDULER] expiry sweep every %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("[SCHEDULER] stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	results, err := s.engine.ProcessExpiredAuctions(ctx)
	if err != nil {
		s.log.Errorw("[SCHEDULER] sweep failed", "error", err)
		return
	}

	sold := 0
	failed := 0
	for _, r := range results {
		if r.Err != "" {
			failed++
		} else if r.Sold {
			sold++
		}
	}
	if len(results) > 0 {
		s.log.Infow("[SCHEDULER] sweep complete", "ended", len(results), "sold", sold, "failed", failed)
	}
}
