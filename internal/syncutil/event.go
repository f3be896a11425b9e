// Package syncutil holds small concurrency primitives shared by the
// workqueue package and the test suites. None of it is part of the
// public API surface.
package syncutil

import (
	"context"
	"sync"
	"time"
)

// ManualResetEvent is a broadcast signal that stays set until Reset is
// called explicitly, mirroring the manual-reset event a WorkQueue uses
// to wake its poller.
type ManualResetEvent struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewManualResetEvent returns an event in the unset state.
func NewManualResetEvent() *ManualResetEvent {
	return &ManualResetEvent{ch: make(chan struct{})}
}

// Set puts the event into the signaled state, releasing every current
// and future waiter until Reset is called.
func (e *ManualResetEvent) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.ch:
		// already set
	default:
		close(e.ch)
	}
}

// Reset returns the event to the unset state.
func (e *ManualResetEvent) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.ch:
		e.ch = make(chan struct{})
	default:
		// already unset
	}
}

// Wait blocks until the event is signaled, ctx is done, or timeoutC
// fires (nil disables the timeout branch — the same shape as
// time.Timer.C). Returns true if the event was observed signaled.
func (e *ManualResetEvent) Wait(ctx context.Context, timeoutC <-chan time.Time) bool {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()

	select {
	case <-ch:
		return true
	default:
	}

	select {
	case <-ch:
		return true
	case <-timeoutC:
		return false
	case <-ctx.Done():
		return false
	}
}

// Barrier is an N-party rendezvous: every caller of Wait blocks until
// exactly n callers have arrived, then all are released together.
type Barrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	release chan struct{}
}

// NewBarrier creates a barrier for n participants.
func NewBarrier(n int) *Barrier {
	return &Barrier{n: n, release: make(chan struct{})}
}

// Wait blocks the calling goroutine until n parties have called Wait.
func (b *Barrier) Wait() {
	b.mu.Lock()
	b.arrived++
	if b.arrived >= b.n {
		release := b.release
		b.mu.Unlock()
		close(release)
		return
	}
	release := b.release
	b.mu.Unlock()

	<-release
}
