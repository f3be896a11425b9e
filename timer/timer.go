// Package timer implements the runtime's after-delay dispatch service:
// one-shot callbacks, cancellable handles, and executor-routed
// resumption for code awaiting a duration.
package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/nebularun/asynctask/executor"
)

// ErrCancelled is delivered to an ExecuteAfter callback's error slot
// when the pending delay is aborted before it fires — e.g. by a
// Manager shutdown.
var ErrCancelled = errors.New("timer: cancelled before it fired")

// Handle is a cancellable reference to a scheduled callback.
type Handle struct {
	id xid.ID

	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
	fired     bool
	onCancel  func() // invoked, at most once, if cancel() pre-empts firing
}

// ID returns the handle's identifier, useful for diagnostics.
func (h *Handle) ID() string {
	return h.id.String()
}

func (h *Handle) markFired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled || h.fired {
		return false
	}
	h.fired = true
	return true
}

// cancel stops the underlying timer and marks the handle cancelled.
// Returns true if it actually prevented the callback from firing, in
// which case onCancel (if any) has already been invoked.
func (h *Handle) cancel() bool {
	h.mu.Lock()
	if h.fired || h.cancelled {
		h.mu.Unlock()
		return false
	}
	h.cancelled = true
	h.timer.Stop()
	onCancel := h.onCancel
	h.mu.Unlock()

	if onCancel != nil {
		onCancel()
	}
	return true
}

// Manager schedules and tracks one-shot delayed callbacks. A process
// normally has exactly one, reached through the package-level registry
// below.
type Manager struct {
	mu      sync.Mutex
	handles map[xid.ID]*Handle
	closed  bool
}

// New creates a Manager with no scheduled work.
func New() *Manager {
	return &Manager{handles: map[xid.ID]*Handle{}}
}

// InvokeAfter schedules fn to run once, after duration elapses, on an
// implementation-chosen goroutine. Returns a handle usable with
// CancelInvokeAfter. There is no error slot here — a cancelled
// InvokeAfter simply never runs fn, unlike the error-delivering
// ExecuteAfter.
func (m *Manager) InvokeAfter(duration time.Duration, fn func()) *Handle {
	return m.schedule(duration, fn, nil)
}

// ExecuteAfter schedules fn(ctx, err) to run, routed through exec,
// after duration elapses. If the timer is aborted before firing (e.g.
// the Manager is shut down), fn is still invoked exactly once, with
// ErrCancelled, routed through exec just like the success path.
func (m *Manager) ExecuteAfter(ctx context.Context, duration time.Duration, exec executor.Executor, fn func(ctx context.Context, err error)) *Handle {
	return m.schedule(duration, func() {
		exec.Execute(ctx, func(ctx context.Context) {
			fn(ctx, nil)
		})
	}, func() {
		exec.Execute(ctx, func(ctx context.Context) {
			fn(ctx, ErrCancelled)
		})
	})
}

func (m *Manager) schedule(duration time.Duration, onFire func(), onCancel func()) *Handle {
	h := &Handle{id: xid.New(), onCancel: onCancel}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		h.cancelled = true
		if onCancel != nil {
			onCancel()
		}
		return h
	}
	m.handles[h.id] = h
	m.mu.Unlock()

	h.timer = time.AfterFunc(duration, func() {
		m.mu.Lock()
		delete(m.handles, h.id)
		m.mu.Unlock()

		if h.markFired() {
			onFire()
		}
	})
	return h
}

// CancelInvokeAfter best-effort cancels a pending callback. The
// callback may still fire if it was already dispatched when this is
// called.
func (m *Manager) CancelInvokeAfter(h *Handle) bool {
	if h == nil {
		return false
	}
	ok := h.cancel()
	if ok {
		m.mu.Lock()
		delete(m.handles, h.id)
		m.mu.Unlock()
	}
	return ok
}

// Shutdown aborts every pending handle, delivering ErrCancelled to any
// ExecuteAfter callback still outstanding, and stops accepting new
// schedules.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.handles = map[xid.ID]*Handle{}
	m.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
}

// After is coroutine sugar over ExecuteAfter using the currently
// active executor (executor.Current(ctx)): it blocks the calling
// goroutine for duration, the same way Task[T].Await blocks on a peer
// task, and returns ErrCancelled if the timer was aborted by a runtime
// shutdown before it fired. When no executor is current, the outcome is
// delivered straight from the timer instead of through an executor.
func After(ctx context.Context, duration time.Duration) error {
	m := Instance()
	if m == nil {
		select {
		case <-time.After(duration):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan error, 1)
	exec := executor.Current(ctx)
	if exec == nil {
		m.schedule(duration, func() { done <- nil }, func() { done <- ErrCancelled })
	} else {
		m.ExecuteAfter(ctx, duration, exec, func(ctx context.Context, err error) {
			done <- err
		})
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
