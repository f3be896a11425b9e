package asynctask

import (
	"context"
	"errors"
	"testing"
	"time"
)

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertError(t *testing.T, err error, expected error) {
	t.Helper()
	if !errors.Is(err, expected) {
		t.Fatalf("expected error %v, got %v", expected, err)
	}
}

func assertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTaskSourceResolveDeliversToAwait(t *testing.T) {
	ctx := context.Background()
	source := NewTaskSource[string](ctx)
	task := source.GetTask()

	if task.IsReady() {
		t.Fatal("task should not be ready before Resolve")
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		if !source.Resolve("hello") {
			t.Error("Resolve on a pending source should return true")
		}
	}()

	result := task.Await(ctx)
	assertNoError(t, result.Err)
	assertEqual(t, result.Value, "hello")
}

func TestTaskSourceSecondResolveIsNoop(t *testing.T) {
	ctx := context.Background()
	source := NewTaskSource[int](ctx)
	task := source.GetTask()

	assertEqual(t, source.Resolve(1), true)
	assertEqual(t, source.Resolve(2), false)

	result := task.Await(ctx)
	assertEqual(t, result.Value, 1)
}

func TestTaskSourceRejectDeliversError(t *testing.T) {
	ctx := context.Background()
	source := NewTaskSource[int](ctx)
	task := source.GetTask()

	boom := errors.New("boom")
	source.Reject(boom)

	result := task.Await(ctx)
	assertError(t, result.Err, boom)
	assertEqual(t, task.IsRejected(), true)
}

func TestTaskSourceCloseRejectsPendingWithErrDestroyedPending(t *testing.T) {
	ctx := context.Background()
	source := NewTaskSource[int](ctx)
	task := source.GetTask()

	source.Close()

	result := task.Await(ctx)
	assertError(t, result.Err, ErrDestroyedPending)
}

func TestMakeResolvedAndRejectedTask(t *testing.T) {
	resolved := MakeResolvedTask(42)
	assertEqual(t, resolved.IsReady(), true)
	assertEqual(t, resolved.MustResult(), 42)

	boom := errors.New("boom")
	rejected := MakeRejectedTask[int](boom)
	assertEqual(t, rejected.IsReady(), true)
	assertError(t, rejected.GetError(), boom)
}

func TestMustResultPanicsOnRejection(t *testing.T) {
	boom := errors.New("boom")
	task := MakeRejectedTask[int](boom)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected MustResult to panic on a rejected task")
		}
	}()
	task.MustResult()
}

func TestAwaitReturnsContextErrorWhenCtxDoneFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := NewTaskSource[int](context.Background())
	task := source.GetTask()

	cancel()
	result := task.Await(ctx)
	assertError(t, result.Err, context.Canceled)
}

func TestOnReadyFiresSynchronouslyWhenAlreadyReady(t *testing.T) {
	task := MakeResolvedTask(7)
	var called bool
	task.OnReady(func() { called = true })
	assertEqual(t, called, true)
}

func TestOnReadyFiresOnceTaskBecomesReady(t *testing.T) {
	ctx := context.Background()
	source := NewTaskSource[int](ctx)
	task := source.GetTask()

	done := make(chan struct{})
	task.OnReady(func() { close(done) })

	select {
	case <-done:
		t.Fatal("OnReady fired before the task resolved")
	default:
	}

	source.Resolve(1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnReady never fired after Resolve")
	}
}

func TestGetTaskCalledTwiceReturnsSameUnderlyingTask(t *testing.T) {
	ctx := context.Background()
	source := NewTaskSource[int](ctx)
	first := source.GetTask()
	second := source.GetTask()

	source.Resolve(9)
	assertEqual(t, first.MustResult(), 9)
	assertEqual(t, second.MustResult(), 9)
}
