// Package retry wraps Task-producing functions with exponential
// backoff and deadline enforcement. Backoff scheduling is delegated to
// github.com/cenkalti/backoff/v4 rather than a hand-rolled
// "backoff * attempt" loop.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nebularun/asynctask/asynctask"
	"github.com/nebularun/asynctask/executor"
)

// ErrTimeout is returned when a Timeout-wrapped function fails to
// produce a result before its deadline.
var ErrTimeout = errors.New("retry: operation exceeded its timeout")

// Policy configures Do's backoff schedule.
type Policy struct {
	// MaxRetries bounds the number of additional attempts after the
	// first. Zero means "try once, never retry."
	MaxRetries uint64
	// InitialInterval is the delay before the first retry; subsequent
	// delays grow exponentially from it. Zero selects backoff's default
	// (500ms).
	InitialInterval time.Duration
}

func (p Policy) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	var b backoff.BackOff = eb
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	} else {
		b = backoff.WithMaxRetries(b, 0)
	}
	return b
}

// Do runs fn on exec, retrying per policy whenever it returns an
// error, and returns a Task carrying the first successful result or
// the final attempt's error once retries are exhausted. exec defaults
// to executor.Default() when nil.
func Do[R any](ctx context.Context, exec executor.Executor, policy Policy, fn func(ctx context.Context) (R, error)) asynctask.Task[R] {
	if exec == nil {
		exec = executor.Default()
	}

	source := asynctask.NewTaskSource[R](ctx)
	exec.Execute(ctx, func(ctx context.Context) {
		b := backoff.WithContext(policy.backOff(), ctx)

		var (
			value R
			err   error
		)
		opErr := backoff.Retry(func() error {
			value, err = fn(ctx)
			return err
		}, b)

		if opErr != nil {
			source.Reject(opErr)
			return
		}
		source.Resolve(value)
	})
	return source.GetTask()
}

// Timeout runs fn on exec under a deadline of duration, rejecting the
// returned task with ErrTimeout if fn has not produced a result by
// then. fn keeps running after the timeout fires — Go has no
// preemptive cancellation of an arbitrary function — so callers whose
// fn respects ctx should use the ctx passed to it to stop early.
func Timeout[R any](ctx context.Context, exec executor.Executor, duration time.Duration, fn func(ctx context.Context) (R, error)) asynctask.Task[R] {
	if exec == nil {
		exec = executor.Default()
	}

	source := asynctask.NewTaskSource[R](ctx)
	exec.Execute(ctx, func(ctx context.Context) {
		deadlineCtx, cancel := context.WithTimeout(ctx, duration)
		defer cancel()

		type outcome struct {
			value R
			err   error
		}
		resultCh := make(chan outcome, 1)

		go func() {
			value, err := fn(deadlineCtx)
			resultCh <- outcome{value, err}
		}()

		select {
		case res := <-resultCh:
			if res.err != nil {
				source.Reject(res.err)
				return
			}
			source.Resolve(res.value)
		case <-deadlineCtx.Done():
			if errors.Is(deadlineCtx.Err(), context.DeadlineExceeded) {
				source.Reject(ErrTimeout)
				return
			}
			source.Reject(deadlineCtx.Err())
		}
	})
	return source.GetTask()
}
