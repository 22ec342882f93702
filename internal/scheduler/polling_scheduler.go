package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/bassista/go_datastore/internal/logger"
)

// Refresher is the store side of a refresh: one full reload from upstream.
type Refresher interface {
	LoadAll(ctx context.Context) error
}

// Stats describes the outcome of past ticks.
type Stats struct {
	Runs                int
	Failures            int
	ConsecutiveFailures int
	LastSuccess         time.Time
	LastError           error
}

// PollingScheduler reloads a store from its loader on a fixed interval.
//
// A tick that fails leaves the store as it was; after maxBackoff consecutive
// failures the interval doubles per failure, up to 8x, until a tick succeeds.
type PollingScheduler struct {
	target Refresher
	poll   time.Duration

	mu    sync.Mutex
	stats Stats
}

const maxBackoff = 3

func NewPollingScheduler(target Refresher, poll time.Duration) *PollingScheduler {
	return &PollingScheduler{target: target, poll: poll}
}

// Start runs the polling loop until ctx is done. The returned channel is
// closed when the loop has exited.
func (s *PollingScheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	logger.WithComponent("sched").Debugf("starting refresh scheduler with interval: %v", s.poll)
	timer := time.NewTimer(s.poll)
	go func() {
		defer close(done)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.WithComponent("sched").Info("scheduler stopped")
				return
			case <-timer.C:
				s.tick(ctx)
				timer.Reset(s.nextDelay())
			}
		}
	}()
	return done
}

func (s *PollingScheduler) tick(ctx context.Context) {
	logger.WithComponent("sched").Debugf("refresh tick started")
	err := s.target.LoadAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Runs++
	if err != nil {
		// Cancellation during shutdown is not a failure.
		if ctx.Err() != nil {
			logger.WithComponent("sched").Debugf("tick cancelled: %v", err)
			return
		}
		s.stats.Failures++
		s.stats.ConsecutiveFailures++
		s.stats.LastError = err
		logger.WithComponent("sched").Errorf("refresh failed (%d in a row): %v", s.stats.ConsecutiveFailures, err)
		return
	}
	s.stats.ConsecutiveFailures = 0
	s.stats.LastError = nil
	s.stats.LastSuccess = time.Now()
	logger.WithComponent("sched").Tracef("refresh tick done")
}

func (s *PollingScheduler) nextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	over := s.stats.ConsecutiveFailures - maxBackoff
	if over <= 0 {
		return s.poll
	}
	if over > 3 {
		over = 3
	}
	return s.poll << over
}

// Stats returns a copy of the tick counters.
func (s *PollingScheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
