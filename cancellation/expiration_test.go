package cancellation

import (
	"testing"
	"time"

	"github.com/nebularun/asynctask/timer"
)

func TestNeverExpirationNeverExpires(t *testing.T) {
	exp := Never()
	if exp.IsExpired() {
		t.Fatal("Never() should not be expired")
	}
	select {
	case <-exp.Done():
		t.Fatal("Never()'s Done channel should not close")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestFromTokenExpiresWhenTokenCancels(t *testing.T) {
	src := New()
	exp := FromToken(src.Token())

	if exp.IsExpired() {
		t.Fatal("expiration should not start expired")
	}

	src.Cancel()
	assertTrue(t, exp.IsExpired(), "expiration should report expired once the token cancels")
}

func TestFromTokenAndTimeoutExpiresOnWhicheverFiresFirst(t *testing.T) {
	src := New()
	exp := FromTokenAndTimeout(src.Token(), time.Hour)

	done := make(chan struct{})
	cancel := exp.Subscribe(func() { close(done) })
	defer cancel()

	src.Cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expiration did not fire on token cancellation")
	}
}

func TestFromTokenAndTimeoutExpiresOnTimeout(t *testing.T) {
	exp := FromTokenAndTimeout(None(), 10*time.Millisecond)

	select {
	case <-exp.Done():
	case <-time.After(time.Second):
		t.Fatal("expiration did not fire on timeout")
	}
	assertTrue(t, exp.IsExpired(), "expiration should report expired after its deadline passes")
}

func TestSubscribeFiresOnlyOnceWhenBothTokenAndTimeoutFire(t *testing.T) {
	src := New()
	exp := FromTokenAndTimeout(src.Token(), 5*time.Millisecond)

	var count int
	exp.Subscribe(func() { count++ })

	src.Cancel()
	time.Sleep(20 * time.Millisecond)

	if count != 1 {
		t.Fatalf("expected the callback to fire exactly once, got %d", count)
	}
}

func TestCancelFuncDetachesBothWatchers(t *testing.T) {
	src := New()
	exp := FromTokenAndTimeout(src.Token(), time.Hour)

	var called bool
	cancel := exp.Subscribe(func() { called = true })
	cancel()

	src.Cancel()
	if called {
		t.Fatal("callback should not fire after its subscription is cancelled")
	}
}

func TestSubscribeTimeoutRoutesThroughInstalledTimerInstance(t *testing.T) {
	m := timer.New()
	timer.SetInstance(m)
	defer timer.ReleaseInstance()

	exp := FromTokenAndTimeout(None(), 10*time.Millisecond)

	select {
	case <-exp.Done():
	case <-time.After(time.Second):
		t.Fatal("expiration never fired through the installed timer instance")
	}
}

func TestSubscribeTimeoutCancelAbortsTheTimerInstanceHandle(t *testing.T) {
	m := timer.New()
	timer.SetInstance(m)
	defer timer.ReleaseInstance()

	exp := FromTokenAndTimeout(None(), 10*time.Millisecond)

	var called bool
	cancel := exp.Subscribe(func() { called = true })
	cancel()

	time.Sleep(30 * time.Millisecond)
	if called {
		t.Fatal("callback should not fire once its timer-backed subscription is cancelled")
	}
}

func TestSubscribeTimeoutFallsBackToStdlibTimerWithoutAnInstance(t *testing.T) {
	timer.ReleaseInstance()

	exp := FromTokenAndTimeout(None(), 10*time.Millisecond)

	select {
	case <-exp.Done():
	case <-time.After(time.Second):
		t.Fatal("expiration never fired without a timer instance installed")
	}
}
