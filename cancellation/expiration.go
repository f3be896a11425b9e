package cancellation

import (
	"sync"
	"time"

	"github.com/nebularun/asynctask/timer"
)

// Expiration combines an optional cancellation Token with an optional
// duration: it is expired once either fires. It is the composite
// signal coroutines await when they want to cooperate with "stop at
// the first of a cancel or a timeout" rather than tracking the two
// separately.
type Expiration struct {
	token      Token
	hasTimeout bool
	deadline   time.Time
}

// Never returns an Expiration that never expires.
func Never() Expiration {
	return Expiration{}
}

// FromToken returns an Expiration that expires only when token
// cancels.
func FromToken(token Token) Expiration {
	return Expiration{token: token}
}

// FromTokenAndTimeout returns an Expiration that expires when token
// cancels or when timeout elapses, whichever comes first.
func FromTokenAndTimeout(token Token, timeout time.Duration) Expiration {
	return Expiration{token: token, hasTimeout: true, deadline: time.Now().Add(timeout)}
}

// IsExpired reports whether the cancellation has fired or the deadline
// has passed. It is a point-in-time check; use Subscribe/Done to be
// notified the moment either happens.
func (e Expiration) IsExpired() bool {
	if e.token.IsCancelled() {
		return true
	}
	if e.hasTimeout && !time.Now().Before(e.deadline) {
		return true
	}
	return false
}

// Subscribe attaches fn to whichever of the cancellation or the
// timeout fires first; fn runs at most once even if both occur. The
// returned cancel function detaches both underlying watchers and is
// safe to call multiple times. The timeout half is registered through
// the process's timer.Instance() rather than a bare stdlib timer, so
// it shares that service's fire-vs-cancel serialization and is aborted
// along with everything else when runtimeguard.Guard.Close() shuts the
// timer down. If no timer.Manager has been installed yet, Subscribe
// falls back to time.AfterFunc so Expiration still works standalone.
func (e Expiration) Subscribe(fn func()) (cancel func()) {
	if e.IsExpired() {
		fn()
		return func() {}
	}

	var once sync.Once
	fire := func() { once.Do(fn) }

	sub := e.token.Subscribe(fire)

	var (
		mgr      *timer.Manager
		handle   *timer.Handle
		stdTimer *time.Timer
	)
	if e.hasTimeout {
		remaining := time.Until(e.deadline)
		if remaining <= 0 {
			fire()
		} else if mgr = timer.Instance(); mgr != nil {
			handle = mgr.InvokeAfter(remaining, fire)
		} else {
			stdTimer = time.AfterFunc(remaining, fire)
		}
	}

	return func() {
		sub.Unsubscribe()
		if handle != nil {
			mgr.CancelInvokeAfter(handle)
		}
		if stdTimer != nil {
			stdTimer.Stop()
		}
	}
}

// Done returns a channel closed when the expiration fires — the
// sugar a coroutine awaits to suspend until expiration and resume with
// no error. Expiring is never itself an error: the channel simply
// closes, it never carries a value.
func (e Expiration) Done() <-chan struct{} {
	done := make(chan struct{})
	if e.IsExpired() {
		close(done)
		return done
	}

	cancel := e.Subscribe(func() {
		close(done)
	})
	_ = cancel
	return done
}
