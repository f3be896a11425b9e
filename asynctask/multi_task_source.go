package asynctask

import (
	"context"
	"sync"
)

// MultiTaskSource broadcasts a single outcome to any number of Task[T]
// consumers, each obtained via GetNextTask. Unlike TaskSource, a single
// coreTask's one-continuation-slot rule would not support fan-out, so
// MultiTaskSource instead hands out a fresh coreTask per subscriber and
// keeps the pending ones in a list, resolving or rejecting every member
// of that list together.
type MultiTaskSource[T any] struct {
	mu  sync.Mutex
	ctx context.Context

	pending []*coreTask[T]

	done  bool
	value T
	err   error

	autoResetOnReady bool
}

// NewMultiTaskSource creates a broadcast source. When autoResetOnReady
// is true, the source clears its stored outcome immediately after
// broadcasting so the payload is released promptly and the next
// GetNextTask call yields a fresh pending task rather than an
// already-ready one.
func NewMultiTaskSource[T any](ctx context.Context, autoResetOnReady bool) *MultiTaskSource[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	return &MultiTaskSource[T]{ctx: ctx, autoResetOnReady: autoResetOnReady}
}

// GetNextTask returns a fresh Task[T] bound to the source's outcome. If
// the source has already broadcast (and is not in auto-reset mode),
// the returned task is already ready with the stored value or error.
func (m *MultiTaskSource[T]) GetNextTask() Task[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		if m.err != nil {
			return Task[T]{core: newRejectedCoreTask[T](m.err)}
		}
		return Task[T]{core: newReadyCoreTask(m.value)}
	}

	core := newCoreTask[T]()
	m.pending = append(m.pending, core)
	return Task[T]{core: core}
}

// Resolve broadcasts value to every task currently pending on this
// source, and to every task GetNextTask returns afterward (unless
// autoResetOnReady is set). Returns false if the source already has an
// outcome.
func (m *MultiTaskSource[T]) Resolve(value T) bool {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return false
	}
	m.done = true
	m.value = value
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, c := range pending {
		c.tryResolve(m.ctx, func(slot *T) { *slot = value })
	}

	if m.autoResetOnReady {
		m.reset()
	}
	return true
}

// Reject is Resolve's rejecting counterpart.
func (m *MultiTaskSource[T]) Reject(err error) bool {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return false
	}
	m.done = true
	m.err = err
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, c := range pending {
		c.tryReject(m.ctx, err)
	}

	if m.autoResetOnReady {
		m.reset()
	}
	return true
}

func (m *MultiTaskSource[T]) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	m.done = false
	m.value = zero
	m.err = nil
}

// Close rejects every still-pending task with ErrDestroyedPending, the
// same explicit-destructor substitute TaskSource.Close provides.
func (m *MultiTaskSource[T]) Close() {
	m.Reject(ErrDestroyedPending)
}
