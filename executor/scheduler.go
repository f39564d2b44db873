package executor

import (
	"context"
	"sync"
	"time"

	"github.com/civicworks/remedy/logger"
)

// Scheduler periodically submits reconciliation-only workflow runs to the
// pool, independent of manual triggers. A failed tick backs off before the
// loop resumes; the scheduler itself never terminates on error.
type Scheduler struct {
	pool     *Pool
	interval time.Duration
	timeout  time.Duration
	backoff  time.Duration
	stopCh   chan struct{}
	once     sync.Once
}

// NewScheduler creates a scheduler. interval is the tick period, timeout
// the per-run wait, backoff the pause after a failed tick.
func NewScheduler(pool *Pool, interval, timeout, backoff time.Duration) *Scheduler {
	return &Scheduler{
		pool:     pool,
		interval: interval,
		timeout:  timeout,
		backoff:  backoff,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background loop. It runs until the context is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("scheduler starting", "interval", s.interval, "timeout", s.timeout)

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("scheduler stopped due to context cancellation")
				return
			case <-s.stopCh:
				logger.Info("scheduler stopped due to stop signal")
				return
			case <-ticker.C:
				logger.Debug("running background reply check")
				state, err := s.pool.Submit(ctx, TriggerScheduled, Request{SkipDispatch: true}, s.timeout)
				if err != nil {
					logger.Error("background reply check failed", "error", err)
					select {
					case <-time.After(s.backoff):
					case <-ctx.Done():
						return
					case <-s.stopCh:
						return
					}
					continue
				}
				logger.Info("background reply check completed", "summary", state.Summary)
			}
		}
	}()
}

// Stop signals the scheduler to stop
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
}
