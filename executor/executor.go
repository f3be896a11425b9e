// Package executor provides the runtime's scheduling abstraction: a
// contract any invocation runner implements, plus the process-wide
// registry (default executor, named lookup, and the "currently
// invoking" executor carried through context.Context).
//
// The engine this is modeled after tracks the "currently invoking" and
// "this thread" executors with thread-local storage. Go has no safe
// equivalent, so both are modeled as explicit context.Context values
// instead, propagated the same way request-scoped values already are
// throughout this codebase.
package executor

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Invocation is a scheduled unit of work. It always receives the
// context the executor invoked it with, which carries the "current
// executor" value for anything that needs to hop further.
type Invocation func(ctx context.Context)

// Executor runs scheduled Invocations. Concrete executors only need to
// implement Execute and WaitAnyActivity; FIFO-vs-concurrency guarantees
// are a property of the concrete implementation (see workqueue.Queue
// for the single-poller FIFO case).
type Executor interface {
	// Execute enqueues inv for execution. It must not block the caller
	// on inv's completion.
	Execute(ctx context.Context, inv Invocation)

	// WaitAnyActivity blocks until at least one invocation has been
	// processed since the executor was created, or the executor has
	// been finalized. Used by shutdown loops that need to know an
	// executor has drained past some point.
	WaitAnyActivity()
}

// Finalizable is implemented by executors that support a distinct
// shutdown phase: pending invocations may still drain, but no new work
// should be accepted as first-class.
type Finalizable interface {
	Finalize()
}

// ExecuteFunc is sugar for Execute when the invocation doesn't need the
// propagated context.
func ExecuteFunc(ctx context.Context, e Executor, fn func()) {
	e.Execute(ctx, func(context.Context) { fn() })
}

// Invoke runs inv synchronously on the calling goroutine with ctx
// updated so Current(ctx) resolves to e for the duration of the call.
// Concrete executors call this (or InvokeBatch) from inside their own
// scheduling loop so that code observing Current() mid-invocation sees
// the executor actually driving it.
func Invoke(ctx context.Context, e Executor, inv Invocation) {
	inv(withInvoked(ctx, e))
}

// InvokeBatch runs a span of invocations under a single "invoked"
// context, amortizing the guard across the whole batch instead of
// rebuilding it per invocation.
func InvokeBatch(ctx context.Context, e Executor, invs []Invocation) {
	invoked := withInvoked(ctx, e)
	for _, inv := range invs {
		inv(invoked)
	}
}

type (
	invokedKey       struct{}
	thisGoroutineKey struct{}
)

func withInvoked(ctx context.Context, e Executor) context.Context {
	return context.WithValue(ctx, invokedKey{}, e)
}

// WithThisGoroutineExecutor attaches e as the "this goroutine" executor
// for ctx and everything derived from it. Set once near the top of a
// goroutine's call stack (e.g. a worker's main loop) rather than
// implicitly through thread-local storage, since Go has none.
func WithThisGoroutineExecutor(ctx context.Context, e Executor) context.Context {
	return context.WithValue(ctx, thisGoroutineKey{}, e)
}

// Invoked returns the executor currently driving ctx's invocation, if
// any.
func Invoked(ctx context.Context) (Executor, bool) {
	e, ok := ctx.Value(invokedKey{}).(Executor)
	return e, ok
}

// ThisGoroutine returns the executor explicitly bound to ctx's
// goroutine via WithThisGoroutineExecutor, if any.
func ThisGoroutine(ctx context.Context) (Executor, bool) {
	e, ok := ctx.Value(thisGoroutineKey{}).(Executor)
	return e, ok
}

// Current resolves Invoked(ctx), falling back to ThisGoroutine(ctx),
// falling back to Default(). It is never nil once a default has been
// set; callers that never call SetDefault get nil and must handle it —
// an unset default is a startup bug, not a recoverable runtime
// condition.
func Current(ctx context.Context) Executor {
	if e, ok := Invoked(ctx); ok {
		return e
	}
	if e, ok := ThisGoroutine(ctx); ok {
		return e
	}
	return Default()
}

var (
	registryMu      sync.RWMutex
	defaultExecutor Executor
	namedExecutors  = map[string]Executor{}
	executorNames   = map[Executor]string{}
	registryLogger  = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// SetRegistryLogger lets a host redirect the registry's diagnostic
// logging (e.g. re-registering a default executor) to its own handler.
func SetRegistryLogger(logger *slog.Logger) {
	if logger != nil {
		registryLogger = logger
	}
}

// SetDefault installs the process-wide fallback executor.
func SetDefault(e Executor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if defaultExecutor != nil && defaultExecutor != e {
		registryLogger.Warn("executor default replaced while previous default still installed")
	}
	defaultExecutor = e
}

// Default returns the process-wide fallback executor, or nil if none
// has been installed yet.
func Default() Executor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return defaultExecutor
}

// SetName registers e under name for later lookup via FindByName.
func SetName(e Executor, name string) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if prevName, ok := executorNames[e]; ok {
		delete(namedExecutors, prevName)
	}
	namedExecutors[name] = e
	executorNames[e] = name
}

// FindByName looks up a previously named executor.
func FindByName(name string) (Executor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := namedExecutors[name]
	return e, ok
}

// Finalize begins shutdown of e: if e implements Finalizable its
// Finalize method is invoked; either way e is removed from the default
// slot and the name registry so future Current()/FindByName() calls
// stop observing it. Invocations already pending on e may still drain.
func Finalize(e Executor) {
	if f, ok := e.(Finalizable); ok {
		f.Finalize()
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if defaultExecutor == e {
		defaultExecutor = nil
	}
	if name, ok := executorNames[e]; ok {
		delete(namedExecutors, name)
		delete(executorNames, e)
	}
}
