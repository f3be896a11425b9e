package asynctask

import (
	"context"
	"runtime/debug"

	"github.com/nebularun/asynctask/executor"
)

// Result is a sum type: either a T or an error.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok reports whether the result carries a value rather than an error.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Waitable is the minimal surface combinators (WhenAll, WhenAny, Wait)
// operate over, implemented by every Task[T] regardless of T. It lets
// WhenAll/WhenAny accept a heterogeneous mix of tasks carrying
// different payload types in one call.
type Waitable interface {
	IsReady() bool
	GetError() error

	// OnReady installs fn to run once, synchronously if already ready,
	// else on readiness. It is the combinator-facing equivalent of
	// CoreTask::setReadyCallback: it bypasses the continuation slot so
	// combinators can observe completion without interfering with a
	// task's own continuation. Application code should prefer Await;
	// OnReady exists for the combinator package.
	OnReady(fn func())
}

// TaskSource is the producer half of an asynchronous result: the
// handle that resolves or rejects the task exactly once. It is
// move-only in spirit — Go can't enforce that statically, but GetTask
// may only be called once per source.
type TaskSource[T any] struct {
	core      *coreTask[T]
	taskGiven bool
	ctx       context.Context
}

// NewTaskSource creates a pending TaskSource[T]. ctx is captured as the
// context used to dispatch the eventual continuation; pass the context
// in scope where Resolve/Reject will be called.
func NewTaskSource[T any](ctx context.Context) *TaskSource[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	return &TaskSource[T]{core: newCoreTask[T](), ctx: ctx}
}

// Resolve transitions the task to resolved with value, if it is still
// pending. Returns false if the task was already terminal.
func (s *TaskSource[T]) Resolve(value T) bool {
	return s.core.tryResolve(s.ctx, func(slot *T) { *slot = value })
}

// Reject transitions the task to rejected with err, if it is still
// pending. Returns false if the task was already terminal.
func (s *TaskSource[T]) Reject(err error) bool {
	return s.core.tryReject(s.ctx, err)
}

// IsReady reports whether the underlying task has transitioned.
func (s *TaskSource[T]) IsReady() bool {
	return s.core.isReady()
}

// GetTask hands out the single Task[T] consumer handle bound to this
// source. Calling it more than once is a programmer error: it is
// logged and the same underlying task is returned rather than
// panicking, since in Go a second handle sharing the same coreTask is
// still memory-safe, just a misuse of the one-shot contract.
func (s *TaskSource[T]) GetTask() Task[T] {
	if s.taskGiven {
		packageLogger.Error("asynctask: GetTask called more than once on a TaskSource", "stack", string(debug.Stack()))
	}
	s.taskGiven = true
	return Task[T]{core: s.core}
}

// Close finalizes the source: if the task never resolved or rejected,
// it is rejected now with ErrDestroyedPending — the explicit substitute
// for "destroyed while still pending auto-rejects." Go has no
// deterministic destructors, so callers that own a TaskSource whose
// eventual completion isn't guaranteed should defer Close.
func (s *TaskSource[T]) Close() {
	s.core.tryReject(s.ctx, ErrDestroyedPending)
}

// Task is the consumer handle over an asynchronous result: readable
// via Result, Await, or Try, but resolved/rejected only through its
// TaskSource.
type Task[T any] struct {
	core     *coreTask[T]
	detached bool
}

// MakeResolvedTask returns an already-resolved Task[T] carrying value.
func MakeResolvedTask[T any](value T) Task[T] {
	return Task[T]{core: newReadyCoreTask(value)}
}

// MakeRejectedTask returns an already-rejected Task[T].
func MakeRejectedTask[T any](err error) Task[T] {
	return Task[T]{core: newRejectedCoreTask[T](err)}
}

// IsReady reports whether the task has resolved or rejected.
func (t Task[T]) IsReady() bool {
	if t.core == nil {
		return false
	}
	return t.core.isReady()
}

// GetError returns the rejection error, or nil if the task resolved
// (or hasn't completed yet).
func (t Task[T]) GetError() error {
	if t.core == nil {
		return nil
	}
	return t.core.getError()
}

// IsRejected reports whether the task is ready and carries an error.
func (t Task[T]) IsRejected() bool {
	return t.GetError() != nil
}

// Detach marks a task whose lifetime is intentionally deferred — e.g.
// fire-and-forget work pushed into a Collection. It only sets a flag:
// nothing in this package reads it, and dropping an unfinished task is
// not reported, whether or not it was detached.
func (t *Task[T]) Detach() {
	t.detached = true
}

// Result returns the task's outcome as a Result[T]. The task must
// already be ready; calling Result on a pending task returns a
// Result still carrying the zero value and a nil error, since Go has
// no assertion-abort equivalent to fail loudly here — callers are
// expected to check IsReady first (Await/WaitResult always do).
func (t Task[T]) Result() Result[T] {
	if t.core == nil || !t.core.isReady() {
		return Result[T]{}
	}
	if err := t.core.getError(); err != nil {
		return Result[T]{Err: err}
	}
	return Result[T]{Value: t.core.getValue()}
}

// MustResult returns the resolved value, panicking if the task
// rejected.
func (t Task[T]) MustResult() T {
	r := t.Result()
	if r.Err != nil {
		panic(r.Err)
	}
	return r.Value
}

// Await blocks the calling goroutine until the task becomes ready,
// returning its Result. This is the suspension point a coroutine-style
// caller uses: because Go goroutines are cheap and unbound from OS
// threads, blocking here is the idiomatic stand-in for suspending on a
// peer task. Resumption is still always driven by the continuation's
// captured executor — Await merely blocks on the channel that
// continuation closes.
func (t Task[T]) Await(ctx context.Context) Result[T] {
	if t.core == nil {
		return Result[T]{}
	}
	if t.core.isReady() {
		return t.Result()
	}

	done := make(chan struct{})
	exec := executor.Current(ctx)
	t.core.setContinuation(ctx, exec, func(context.Context) { close(done) })

	select {
	case <-done:
	case <-ctx.Done():
		return Result[T]{Err: ctx.Err()}
	}
	return t.Result()
}

// Try is Await by another name, for call sites that want to read as
// "attempt this and get a Result back" rather than "suspend until
// ready." Both behave identically; Try exists so code can opt into
// "don't treat a rejection as fatal to this call site" phrasing.
func (t Task[T]) Try(ctx context.Context) Result[T] {
	return t.Await(ctx)
}

func (t Task[T]) OnReady(fn func()) {
	if t.core == nil {
		fn()
		return
	}
	t.core.setReadyCallback(fn)
}

var _ Waitable = Task[int]{}
