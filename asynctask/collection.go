package asynctask

import (
	"context"
	"sync"
)

// Collection is an ordered, push-only bag of detached Task[struct{}]
// handles with async drain/close semantics. It is used to track
// fire-and-forget work that must nonetheless be waited on during
// shutdown.
type Collection struct {
	mu    sync.Mutex
	tasks []Task[struct{}]
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Push appends t, taking ownership of it (it is marked detached). Safe
// to call concurrently, including while a DisposeAsync sweep is in
// progress.
func (c *Collection) Push(t Task[struct{}]) {
	t.Detach()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, t)
}

// IsEmpty reports whether the collection currently holds no tasks.
func (c *Collection) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks) == 0
}

// DisposeAsync returns a task that completes once every task pushed so
// far is complete, and every task pushed while that wait was in
// progress is also complete — a sweep loop that re-scans after each
// batch and stops only once a sweep finds nothing new.
func (c *Collection) DisposeAsync(ctx context.Context) Task[struct{}] {
	source := NewTaskSource[struct{}](ctx)

	go func() {
		for {
			c.mu.Lock()
			batch := c.tasks
			c.tasks = nil
			c.mu.Unlock()

			if len(batch) == 0 {
				break
			}

			for _, t := range batch {
				t.Await(ctx)
			}
		}

		source.Resolve(struct{}{})
	}()

	return source.GetTask()
}
