package persist

import (
	"context"
	"time"

	"github.com/bassista/go_datastore/internal/logger"
	"github.com/bassista/go_datastore/internal/repository"
)

// StartScheduler runs a goroutine that periodically flushes a dirty mirror.
// On ctx.Done, it performs a final flush before returning.
// Returns a channel that is closed when the scheduler has completed shutdown.
func StartScheduler[S any](
	ctx context.Context,
	mirror *Mirror[S],
	repo repository.Saver[S],
	interval time.Duration,
) <-chan struct{} {
	done := make(chan struct{})
	logger.WithComponent("persist").Debugf("starting persistence scheduler with interval: %v", interval)
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.WithComponent("persist").Debugf("persistence scheduler received context cancellation, performing final flush")
				// Final flush on shutdown - use background context to ensure it completes
				flush(context.Background(), mirror, repo)
				logger.WithComponent("persist").Info("persistence scheduler stopped after final flush")
				return
			case <-ticker.C:
				logger.WithComponent("persist").Tracef("persistence scheduler tick, checking if dirty")
				flush(ctx, mirror, repo)
			}
		}
	}()
	return done
}

func flush[S any](ctx context.Context, mirror *Mirror[S], repo repository.Saver[S]) {
	if err := mirror.Flush(ctx, repo); err != nil {
		logger.WithComponent("persist").Errorf("persist error: %v", err)
	}
}
