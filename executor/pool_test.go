package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolExecuteRunsInvocationsConcurrentlyUpToLimit(t *testing.T) {
	p := NewPool(2)
	var (
		inFlight int32
		maxSeen  int32
		wg       sync.WaitGroup
	)

	for i := 0; i < 6; i++ {
		wg.Add(1)
		p.Execute(context.Background(), func(ctx context.Context) {
			defer wg.Done()
			n := atomic.AddInt32(&inFlight, 1)
			for {
				max := atomic.LoadInt32(&maxSeen)
				if n <= max || atomic.CompareAndSwapInt32(&maxSeen, max, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		})
	}

	wg.Wait()
	if maxSeen > 2 {
		t.Fatalf("expected at most 2 concurrent invocations, saw %d", maxSeen)
	}
	if maxSeen == 0 {
		t.Fatal("expected at least one invocation to run")
	}
}

func TestPoolHasWorksReflectsInFlightInvocations(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	started := make(chan struct{})

	p.Execute(context.Background(), func(ctx context.Context) {
		close(started)
		<-release
	})

	<-started
	if !p.HasWorks() {
		t.Fatal("expected HasWorks to report true while invocation is running")
	}

	close(release)
	p.Finalize()

	if p.HasWorks() {
		t.Fatal("expected HasWorks to report false after Finalize drains")
	}
}

func TestPoolFinalizeRejectsNewWork(t *testing.T) {
	p := NewPool(1)
	p.Finalize()

	var ran bool
	p.Execute(context.Background(), func(ctx context.Context) { ran = true })

	if ran {
		t.Fatal("expected Execute to be a no-op after Finalize")
	}
}

func TestPoolWaitAnyActivityUnblocksAfterFirstInvocation(t *testing.T) {
	p := NewPool(1)
	done := make(chan struct{})
	go func() {
		p.WaitAnyActivity()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitAnyActivity returned before any invocation ran")
	case <-time.After(20 * time.Millisecond):
	}

	p.Execute(context.Background(), func(ctx context.Context) {})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitAnyActivity did not unblock after an invocation completed")
	}
}
