// Package runtimeguard installs and tears down the process-wide
// runtime components (default executor, timer instance) a program
// built on asynctask needs before it can schedule anything. It is the
// Go analogue of a test fixture's RAII guard: construct one at
// startup, Close it at shutdown.
package runtimeguard

import (
	"context"
	"time"

	"github.com/nebularun/asynctask/executor"
	"github.com/nebularun/asynctask/timer"
)

// hasWorks is implemented by runtime components Close's shutdown sweep
// polls before declaring the runtime quiescent.
type hasWorks interface {
	HasWorks() bool
}

// Guard owns the process-wide default executor and timer instance
// installed by New, and undoes both on Close.
type Guard struct {
	defaultExecutor *executor.Pool
	extra           []hasWorks
	pollInterval    time.Duration
}

// Option configures New.
type Option func(*Guard)

// WithPoolSize overrides the default executor's worker limit (see
// executor.NewPool; <= 0 selects its own GOMAXPROCS-based default).
func WithPoolSize(limit int) Option {
	return func(g *Guard) {
		g.defaultExecutor = executor.NewPool(limit)
	}
}

// WithPollInterval overrides how often Close re-checks whether the
// runtime has quiesced. Defaults to 50ms.
func WithPollInterval(d time.Duration) Option {
	return func(g *Guard) {
		g.pollInterval = d
	}
}

// WithComponent adds an additional runtime component (e.g. a
// workqueue.Queue) to the set Close polls for outstanding work before
// it considers the runtime quiescent.
func WithComponent(c hasWorks) Option {
	return func(g *Guard) {
		g.extra = append(g.extra, c)
	}
}

// New installs a default executor.Pool and a default timer.Manager as
// the process's singletons and returns a Guard that undoes both.
func New(opts ...Option) *Guard {
	g := &Guard{pollInterval: 50 * time.Millisecond}
	for _, opt := range opts {
		opt(g)
	}
	if g.defaultExecutor == nil {
		g.defaultExecutor = executor.NewPool(0)
	}

	timer.SetDefaultInstance()
	executor.SetDefault(g.defaultExecutor)

	return g
}

// Close tears the runtime down in two phases: first it disposes the
// owned components (executor.Finalize stops new work on the pool,
// drains in-flight invocations and clears the process-wide default
// executor; the timer instance is shut down), then it spins — waking
// every pollInterval — until every extra component registered via
// WithComponent also reports no outstanding work. The timer singleton
// is cleared when Close returns. ctx being done aborts the wait early
// without an error, since a guard's teardown has nowhere to report
// one; the timer singleton is cleared in that case too.
func (g *Guard) Close(ctx context.Context) {
	executor.Finalize(g.defaultExecutor)

	if m := timer.Instance(); m != nil {
		m.Shutdown()
	}

	defer timer.ReleaseInstance()

	if len(g.extra) > 0 {
		anyInUse := func() bool {
			for _, c := range g.extra {
				if c.HasWorks() {
					return true
				}
			}
			return false
		}

		ticker := time.NewTicker(g.pollInterval)
		defer ticker.Stop()

		for anyInUse() {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}
}
