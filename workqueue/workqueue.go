// Package workqueue implements an Executor backed by an explicit
// pending-invocation list and a pollable wait: the lock-protected
// queue a dedicated thread drains by calling Poll in a loop. The
// pending list is not capped: Execute always appends and never blocks.
package workqueue

import (
	"context"
	"sync"
	"time"

	"github.com/nebularun/asynctask/asynctask"
	"github.com/nebularun/asynctask/executor"
	"github.com/nebularun/asynctask/internal/syncutil"
)

// Queue is an Executor whose invocations are only run when something
// calls Poll. Only one goroutine may be inside Poll at a time — a
// second concurrent Poll call is a programmer error (asserted via a
// panic here, since there is no recoverable meaning for two pollers
// racing the same pending list).
type Queue struct {
	mu         sync.Mutex
	pending    []executor.Invocation
	event      *syncutil.ManualResetEvent
	notified   bool
	polling    bool
	waitSource *asynctask.TaskSource[struct{}]

	name string
}

// New creates an empty, unnamed Queue.
func New() *Queue {
	return &Queue{event: syncutil.NewManualResetEvent()}
}

// Execute appends inv to the pending list and wakes any in-progress
// Poll or outstanding WaitForWork task.
func (q *Queue) Execute(ctx context.Context, inv executor.Invocation) {
	q.mu.Lock()
	q.pending = append(q.pending, inv)
	q.notifyLocked()
	q.mu.Unlock()
}

// notifyLocked must be called with q.mu held.
func (q *Queue) notifyLocked() {
	if q.waitSource != nil {
		q.waitSource.Resolve(struct{}{})
	}
	q.event.Set()
}

// WaitForWork returns a task that completes once at least one
// invocation is pending or Notify is called. At most one such task may
// be outstanding; calling it again before the previous one resolves
// returns the same pending task rather than a new one.
func (q *Queue) WaitForWork(ctx context.Context) asynctask.Task[struct{}] {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) > 0 || q.notified {
		return asynctask.MakeResolvedTask(struct{}{})
	}

	if q.waitSource == nil || q.waitSource.IsReady() {
		q.waitSource = asynctask.NewTaskSource[struct{}](ctx)
	}
	return q.waitSource.GetTask()
}

// Poll drains and executes pending invocations until timeout elapses
// (nil means block indefinitely) or Notify is called. A zero timeout
// performs exactly one drain pass and returns. Only one goroutine may
// be inside Poll at a time.
func (q *Queue) Poll(ctx context.Context, timeout *time.Duration) {
	q.mu.Lock()
	if q.polling {
		q.mu.Unlock()
		panic("workqueue: concurrent Poll calls on the same Queue")
	}
	q.polling = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.notified = false
		q.polling = false
		q.mu.Unlock()
	}()

	deadline := time.Now()
	hasDeadline := timeout != nil
	if hasDeadline {
		deadline = deadline.Add(*timeout)
	}

	timedOut := func() bool {
		return hasDeadline && !time.Now().Before(deadline)
	}

	take := func() []executor.Invocation {
		q.mu.Lock()
		defer q.mu.Unlock()

		if q.waitSource != nil && q.waitSource.IsReady() {
			q.waitSource = nil
		}

		var batch []executor.Invocation
		if len(q.pending) > 0 {
			batch = q.pending
			q.pending = nil
		}
		q.event.Reset()
		return batch
	}

	for {
		batch := take()
		for len(batch) == 0 {
			var timeoutC <-chan time.Time
			var waitTimer *time.Timer
			if hasDeadline {
				remaining := time.Until(deadline)
				if remaining <= 0 {
					break
				}
				waitTimer = time.NewTimer(remaining)
				timeoutC = waitTimer.C
			}

			q.event.Wait(ctx, timeoutC)
			if waitTimer != nil {
				waitTimer.Stop()
			}

			q.mu.Lock()
			notified := q.notified
			q.mu.Unlock()
			if notified {
				break
			}
			if timedOut() {
				break
			}

			batch = take()
		}

		if len(batch) > 0 {
			executor.InvokeBatch(ctx, q, batch)
		}

		q.mu.Lock()
		notified := q.notified
		q.mu.Unlock()

		if timedOut() || notified {
			return
		}
	}
}

// Notify wakes an in-progress Poll (and resolves a pending
// WaitForWork task) without any invocation having been scheduled.
func (q *Queue) Notify() {
	q.mu.Lock()
	q.notified = true
	q.notifyLocked()
	q.mu.Unlock()
}

// WaitAnyActivity blocks until an invocation is pending, a poller is
// actively draining the queue, or Notify is called. It does not drain
// the queue itself — it is a readiness probe for shutdown loops that
// need to know a poller has (or is about to have) something to do.
func (q *Queue) WaitAnyActivity() {
	q.mu.Lock()
	if len(q.pending) > 0 || q.polling || q.notified {
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	q.event.Wait(context.Background(), nil)
}

// HasWorks reports whether invocations are pending or a poll is
// currently draining them — used by runtimeguard's shutdown sweep.
func (q *Queue) HasWorks() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0 || q.polling
}

// SetName assigns a diagnostic name to the queue.
func (q *Queue) SetName(name string) {
	q.mu.Lock()
	q.name = name
	q.mu.Unlock()
}

// Name returns the queue's diagnostic name.
func (q *Queue) Name() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.name
}

var _ executor.Executor = (*Queue)(nil)
