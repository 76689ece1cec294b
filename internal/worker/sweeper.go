package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper purges state that has outlived its usefulness.
type Sweeper interface {
	Name() string
	Sweep(ctx context.Context) (int, error)
}

// RunSweepers calls Sweep on every sweeper each interval until ctx is done.
// It blocks; run it on its own goroutine.
func RunSweepers(ctx context.Context, interval time.Duration, logger *zap.Logger, sweepers ...Sweeper) {
	if len(sweepers) == 0 {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, logger, sweepers)
		}
	}
}

func sweepOnce(ctx context.Context, logger *zap.Logger, sweepers []Sweeper) {
	for _, s := range sweepers {
		removed, err := s.Sweep(ctx)
		if err != nil {
			logger.Warn("sweep failed", zap.String("sweeper", s.Name()), zap.Error(err))
			continue
		}
		if removed > 0 {
			logger.Debug("sweep finished", zap.String("sweeper", s.Name()), zap.Int("removed", removed))
		}
	}
}
