package asynctask

import (
	"context"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/nebularun/asynctask/executor"
)

// packageLogger is the observable side channel for diagnostics:
// invariant violations such as a repeated resolve or a continuation
// reinstalled while one is already pending. It defaults to discarding
// everything.
var packageLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// SetLogger redirects the package's invariant-violation diagnostics to
// logger. Pass nil to restore the discarding default.
func SetLogger(logger *slog.Logger) {
	if logger == nil {
		packageLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}
	packageLogger = logger
}

type outcome int32

const (
	outcomePending outcome = iota
	outcomeResolved
	outcomeRejected
)

// continuationRecord is the single continuation slot a coreTask may
// hold, paired with the executor it must run through.
type continuationRecord struct {
	invocation       executor.Invocation
	capturedExecutor executor.Executor
}

// coreTask is the shared outcome node behind Task/TaskSource: an
// outcome tag, an optional error, a user payload, a single
// continuation slot, and an optional ready callback. Go's garbage
// collector owns its memory, so there is no explicit ref count;
// TaskSource[T].Close documents and performs the one piece of
// destructor-like behavior ("destroyed while pending auto-rejects")
// that GC alone cannot give us.
type coreTask[T any] struct {
	mu sync.Mutex

	state outcome
	value T
	err   error

	continuation *continuationRecord
	readyCB      func()

	continueOnCapturedExecutor bool
}

func newCoreTask[T any]() *coreTask[T] {
	return &coreTask[T]{continueOnCapturedExecutor: true}
}

func newReadyCoreTask[T any](value T) *coreTask[T] {
	c := newCoreTask[T]()
	c.state = outcomeResolved
	c.value = value
	return c
}

func newRejectedCoreTask[T any](err error) *coreTask[T] {
	c := newCoreTask[T]()
	c.state = outcomeRejected
	c.err = err
	return c
}

// isReady reports whether the task has transitioned out of pending.
func (c *coreTask[T]) isReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != outcomePending
}

func (c *coreTask[T]) getError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *coreTask[T]) getValue() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *coreTask[T]) hasContinuation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.continuation != nil
}

func (c *coreTask[T]) setContinueOnCapturedExecutor(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.continueOnCapturedExecutor = v
}

func (c *coreTask[T]) isContinueOnCapturedExecutor() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.continueOnCapturedExecutor
}

// tryResolve atomically transitions pending -> resolved, calling emit
// to materialize the payload before the transition is published to
// other goroutines. Returns false if the task was already terminal.
func (c *coreTask[T]) tryResolve(ctx context.Context, emit func(*T)) bool {
	c.mu.Lock()
	if c.state != outcomePending {
		c.mu.Unlock()
		packageLogger.Warn("asynctask: tryResolve on already-terminal task", "stack", string(debug.Stack()))
		return false
	}

	if emit != nil {
		emit(&c.value)
	}
	c.state = outcomeResolved

	cb := c.readyCB
	cont := c.continuation
	continueOnCaptured := c.continueOnCapturedExecutor
	c.mu.Unlock()

	c.fire(ctx, cb, cont, continueOnCaptured)
	return true
}

// tryReject is tryResolve's rejecting counterpart.
func (c *coreTask[T]) tryReject(ctx context.Context, err error) bool {
	c.mu.Lock()
	if c.state != outcomePending {
		c.mu.Unlock()
		packageLogger.Warn("asynctask: tryReject on already-terminal task", "stack", string(debug.Stack()))
		return false
	}

	c.err = err
	c.state = outcomeRejected

	cb := c.readyCB
	cont := c.continuation
	continueOnCaptured := c.continueOnCapturedExecutor
	c.mu.Unlock()

	c.fire(ctx, cb, cont, continueOnCaptured)
	return true
}

func (c *coreTask[T]) fire(ctx context.Context, cb func(), cont *continuationRecord, continueOnCaptured bool) {
	if cb != nil {
		cb()
	}
	if cont != nil {
		dispatch(ctx, cont, continueOnCaptured)
	}
}

// setContinuation installs inv to run on capturedExecutor when the
// task becomes ready. If the task is already ready, inv is dispatched
// immediately instead of being stored. At most one continuation may be
// installed at a time; installing a second one while the first is
// still pending is a programmer error, logged and ignored (the first
// continuation is preserved).
func (c *coreTask[T]) setContinuation(ctx context.Context, capturedExecutor executor.Executor, inv executor.Invocation) {
	c.mu.Lock()

	if c.state != outcomePending {
		continueOnCaptured := c.continueOnCapturedExecutor
		c.mu.Unlock()
		dispatch(ctx, &continuationRecord{invocation: inv, capturedExecutor: capturedExecutor}, continueOnCaptured)
		return
	}

	if c.continuation != nil {
		c.mu.Unlock()
		packageLogger.Error("asynctask: continuation reinstalled on a CoreTask that already has one", "stack", string(debug.Stack()))
		return
	}

	c.continuation = &continuationRecord{invocation: inv, capturedExecutor: capturedExecutor}
	c.mu.Unlock()
}

// setReadyCallback installs a low-level hook fired during the
// transition, before the main continuation. If the task is already
// ready, fn runs synchronously on the calling goroutine.
func (c *coreTask[T]) setReadyCallback(fn func()) {
	c.mu.Lock()
	if c.state != outcomePending {
		c.mu.Unlock()
		fn()
		return
	}
	c.readyCB = fn
	c.mu.Unlock()
}

// dispatch runs a continuation through its captured executor, honoring
// continueOnCapturedExecutor: when true (the default) resumption
// always re-enters through the captured executor — deliberately
// skipping the "already on the right executor, run inline" shortcut,
// since it isn't needed for correctness and only complicates identity
// comparison; when false, resumption runs on whichever executor is
// driving the resolving call, i.e. inline on the current goroutine.
func dispatch(ctx context.Context, cont *continuationRecord, continueOnCaptured bool) {
	if !continueOnCaptured || cont.capturedExecutor == nil {
		cont.invocation(ctx)
		return
	}
	cont.capturedExecutor.Execute(ctx, cont.invocation)
}
