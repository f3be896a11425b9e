package workqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nebularun/asynctask/internal/syncutil"
)

func TestPollDrainsPendingInvocations(t *testing.T) {
	q := New()
	var ran int32
	q.Execute(context.Background(), func(ctx context.Context) { atomic.AddInt32(&ran, 1) })
	q.Execute(context.Background(), func(ctx context.Context) { atomic.AddInt32(&ran, 1) })

	zero := time.Duration(0)
	q.Poll(context.Background(), &zero)

	if ran != 2 {
		t.Fatalf("expected 2 invocations to run, got %d", ran)
	}
}

func TestPollBlocksUntilNotifyWakesIt(t *testing.T) {
	q := New()
	done := make(chan struct{})

	go func() {
		q.Poll(context.Background(), nil)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Poll returned before any work or Notify")
	default:
	}

	q.Notify()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll never returned after Notify")
	}
}

func TestConcurrentPollPanics(t *testing.T) {
	q := New()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		q.Execute(context.Background(), func(ctx context.Context) {
			close(started)
			<-release
		})
		zero := time.Duration(0)
		q.Poll(context.Background(), &zero)
	}()

	<-started

	defer func() {
		if recover() == nil {
			t.Fatal("expected a concurrent Poll call to panic")
		}
		close(release)
	}()
	zero := time.Duration(0)
	q.Poll(context.Background(), &zero)
}

func TestWaitForWorkResolvesWhenWorkArrives(t *testing.T) {
	q := New()
	task := q.WaitForWork(context.Background())
	if task.IsReady() {
		t.Fatal("expected WaitForWork to be pending on an empty queue")
	}

	q.Execute(context.Background(), func(ctx context.Context) {})

	if !task.IsReady() {
		t.Fatal("expected WaitForWork to resolve once work is scheduled")
	}
}

func TestWaitForWorkAlreadyResolvedWhenWorkIsAlreadyPending(t *testing.T) {
	q := New()
	q.Execute(context.Background(), func(ctx context.Context) {})

	task := q.WaitForWork(context.Background())
	if !task.IsReady() {
		t.Fatal("expected WaitForWork to resolve immediately when work is already pending")
	}
}

func TestHasWorksReflectsPendingInvocations(t *testing.T) {
	q := New()
	if q.HasWorks() {
		t.Fatal("expected empty idle queue to report no works")
	}

	q.Execute(context.Background(), func(ctx context.Context) {})
	if !q.HasWorks() {
		t.Fatal("expected queue with a pending invocation to report works")
	}
}

func TestThroughputManyProducersManyItems(t *testing.T) {
	q := New()

	const producers = 10
	const itemsPerProducer = 10000
	var processed int64

	stop := make(chan struct{})
	var pollWG sync.WaitGroup
	pollWG.Add(1)
	go func() {
		defer pollWG.Done()
		for {
			select {
			case <-stop:
				zero := time.Duration(0)
				q.Poll(context.Background(), &zero)
				return
			default:
			}
			hundredMS := 100 * time.Millisecond
			q.Poll(context.Background(), &hundredMS)
		}
	}()

	barrier := syncutil.NewBarrier(producers)
	var producersWG sync.WaitGroup
	for i := 0; i < producers; i++ {
		producersWG.Add(1)
		go func() {
			defer producersWG.Done()
			barrier.Wait()
			for j := 0; j < itemsPerProducer; j++ {
				q.Execute(context.Background(), func(ctx context.Context) {
					atomic.AddInt64(&processed, 1)
				})
			}
		}()
	}

	producersWG.Wait()
	close(stop)
	q.Notify()
	pollWG.Wait()

	if processed != producers*itemsPerProducer {
		t.Fatalf("expected %d invocations processed, got %d", producers*itemsPerProducer, processed)
	}
}
