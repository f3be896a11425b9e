// Package combinator implements the runtime's composable wait
// operators: whenAll, whenAny, wait/waitResult, and run. They operate
// over asynctask.Waitable so callers can mix tasks of different
// payload types in one call.
package combinator

import (
	"context"
	"sync"

	"github.com/nebularun/asynctask/asynctask"
	"github.com/nebularun/asynctask/cancellation"
	"github.com/nebularun/asynctask/executor"
)

// WhenAll returns a task that resolves true once every task in tasks
// is ready, or false if exp expires first. An empty slice resolves
// immediately with true. WhenAll never touches any input task's
// outcome — it only observes readiness.
func WhenAll(ctx context.Context, tasks []asynctask.Waitable, exp cancellation.Expiration) asynctask.Task[bool] {
	source := asynctask.NewTaskSource[bool](ctx)

	if len(tasks) == 0 {
		source.Resolve(true)
		return source.GetTask()
	}

	var (
		mu        sync.Mutex
		remaining = len(tasks)
		done      bool
	)

	finish := func(result bool) {
		mu.Lock()
		if done {
			mu.Unlock()
			return
		}
		done = true
		mu.Unlock()
		source.Resolve(result)
	}

	cancel := exp.Subscribe(func() {
		finish(false)
	})

	for _, t := range tasks {
		t.OnReady(func() {
			mu.Lock()
			remaining--
			allDone := remaining == 0
			mu.Unlock()
			if allDone {
				cancel()
				finish(true)
			}
		})
	}

	return source.GetTask()
}

// WhenAny returns a task that resolves true as soon as any task in
// tasks becomes ready, or false if exp expires first. Under stress —
// tasks resolving concurrently with WhenAny still wiring up its
// subscriptions — every input is still observed, since OnReady fires
// synchronously for any task that is already ready by the time it is
// subscribed.
func WhenAny(ctx context.Context, tasks []asynctask.Waitable, exp cancellation.Expiration) asynctask.Task[bool] {
	source := asynctask.NewTaskSource[bool](ctx)

	if len(tasks) == 0 {
		source.Resolve(false)
		return source.GetTask()
	}

	var once sync.Once
	finish := func(result bool) {
		once.Do(func() {
			source.Resolve(result)
		})
	}

	cancel := exp.Subscribe(func() {
		finish(false)
	})

	for _, t := range tasks {
		t.OnReady(func() {
			cancel()
			finish(true)
		})
	}

	return source.GetTask()
}

// Wait synchronously blocks the caller until t is ready or ctx is
// done, returning whether t is now ready. It is implemented via
// OnReady signaling a channel close.
func Wait(ctx context.Context, t asynctask.Waitable) bool {
	if t.IsReady() {
		return true
	}

	done := make(chan struct{})
	t.OnReady(func() { close(done) })

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// WaitResult is Wait plus returning the task's Result[T].
func WaitResult[T any](ctx context.Context, t asynctask.Task[T]) asynctask.Result[T] {
	Wait(ctx, t)
	return t.Result()
}

// Run hops onto exec (the default executor if exec is nil), invokes
// fn, and returns its result wrapped in a Task[R].
func Run[R any](ctx context.Context, exec executor.Executor, fn func(ctx context.Context) (R, error)) asynctask.Task[R] {
	if exec == nil {
		exec = executor.Default()
	}

	source := asynctask.NewTaskSource[R](ctx)
	exec.Execute(ctx, func(ctx context.Context) {
		value, err := fn(ctx)
		if err != nil {
			source.Reject(err)
			return
		}
		source.Resolve(value)
	})
	return source.GetTask()
}

// RunTask is Run's task-forwarding counterpart: when fn itself returns
// a Task[R], RunTask forwards that task's eventual completion instead
// of wrapping fn's synchronous return value.
func RunTask[R any](ctx context.Context, exec executor.Executor, fn func(ctx context.Context) asynctask.Task[R]) asynctask.Task[R] {
	if exec == nil {
		exec = executor.Default()
	}

	source := asynctask.NewTaskSource[R](ctx)
	exec.Execute(ctx, func(ctx context.Context) {
		inner := fn(ctx)
		result := inner.Await(ctx)
		if result.Err != nil {
			source.Reject(result.Err)
			return
		}
		source.Resolve(result.Value)
	})
	return source.GetTask()
}

// ToWaitables adapts a homogeneous slice of Task[T] into the
// heterogeneous []asynctask.Waitable WhenAll/WhenAny expect — Go's
// generics are invariant, so []Task[T] cannot be passed as
// []Waitable directly.
func ToWaitables[T any](tasks []asynctask.Task[T]) []asynctask.Waitable {
	out := make([]asynctask.Waitable, len(tasks))
	for i, t := range tasks {
		out[i] = t
	}
	return out
}
