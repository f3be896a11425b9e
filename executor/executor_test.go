package executor

import (
	"context"
	"sync/atomic"
	"testing"
)

func assertTrue(t *testing.T, got bool, msg string) {
	t.Helper()
	if !got {
		t.Fatal(msg)
	}
}

func assertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

type inlineExecutor struct {
	runs int32
}

func (e *inlineExecutor) Execute(ctx context.Context, inv Invocation) {
	atomic.AddInt32(&e.runs, 1)
	Invoke(ctx, e, inv)
}

func (e *inlineExecutor) WaitAnyActivity() {}

func TestCurrentFallsBackThroughInvokedThisGoroutineDefault(t *testing.T) {
	ctx := context.Background()

	if got := Current(ctx); got != nil {
		t.Fatalf("expected nil with nothing set, got %v", got)
	}

	def := &inlineExecutor{}
	SetDefault(def)
	t.Cleanup(func() { SetDefault(nil) })
	assertEqual(t, Current(ctx), Executor(def))

	goroutineExec := &inlineExecutor{}
	ctxWithGoroutine := WithThisGoroutineExecutor(ctx, goroutineExec)
	assertEqual(t, Current(ctxWithGoroutine), Executor(goroutineExec))

	invokedExec := &inlineExecutor{}
	var observed Executor
	invokedExec.Execute(ctxWithGoroutine, func(ictx context.Context) {
		observed = Current(ictx)
	})
	assertEqual(t, observed, Executor(invokedExec))
}

func TestSetNameAndFindByName(t *testing.T) {
	e := &inlineExecutor{}
	SetName(e, "io")
	got, ok := FindByName("io")
	assertTrue(t, ok, "expected io to be registered")
	assertEqual(t, got, Executor(e))

	other := &inlineExecutor{}
	SetName(other, "io")
	_, stillThere := FindByName("io")
	assertTrue(t, stillThere, "renaming should not unregister the name")
	assertEqual(t, got.(*inlineExecutor) != other, true)
}

func TestExecuteFuncIgnoresContext(t *testing.T) {
	e := &inlineExecutor{}
	var called bool
	ExecuteFunc(context.Background(), e, func() { called = true })
	assertTrue(t, called, "ExecuteFunc should have invoked fn")
}

func TestInvokeBatchSharesInvokedContext(t *testing.T) {
	e := &inlineExecutor{}
	var seen []Executor
	InvokeBatch(context.Background(), e, []Invocation{
		func(ctx context.Context) {
			ex, _ := Invoked(ctx)
			seen = append(seen, ex)
		},
		func(ctx context.Context) {
			ex, _ := Invoked(ctx)
			seen = append(seen, ex)
		},
	})
	assertEqual(t, len(seen), 2)
	assertEqual(t, seen[0], Executor(e))
	assertEqual(t, seen[1], Executor(e))
}

func TestFinalizeClearsDefaultAndNames(t *testing.T) {
	e := &inlineExecutor{}
	SetDefault(e)
	SetName(e, "main")

	Finalize(e)

	if got := Default(); got != nil {
		t.Fatalf("expected Default to be cleared after Finalize, got %v", got)
	}
	if _, ok := FindByName("main"); ok {
		t.Fatal("expected name to be cleared after Finalize")
	}
}
