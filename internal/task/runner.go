// Package task provides a cancellable fixed-interval task runner.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Runner invokes a function at a fixed interval until its context is
// cancelled or Stop is called. There is no backoff; a slow tick simply
// delays the next one.
type Runner struct {
	name     string
	interval time.Duration
	fn       func(context.Context)
	logger   zerolog.Logger

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a Runner that calls fn every interval once started.
func New(name string, interval time.Duration, fn func(context.Context), logger zerolog.Logger) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger.With().Str("task", name).Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop in its own goroutine. Calling Start more
// than once is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go r.run(ctx)
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	r.logger.Info().Dur("interval", r.interval).Msg("Task started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Task context cancelled, exiting")
			return
		case <-r.stop:
			r.logger.Info().Msg("Task stopped")
			return
		case <-ticker.C:
			r.fn(ctx)
		}
	}
}

// Stop terminates the loop and blocks until the goroutine has exited, so
// teardown never leaves an orphaned timer. It is idempotent and safe to
// call after context cancellation; on a runner that was never started it
// returns immediately.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return
	}
	<-r.done
}
