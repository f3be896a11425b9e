// Package cancellation implements the runtime's cooperative signal
// primitive: a Source that fans a one-shot cancel out to any number of
// subscribers, and a Token handle callers pass around without being
// able to trigger the cancel themselves.
package cancellation

import (
	"sort"
	"sync"
)

// Token is a handle to a Source's cancellation state. The zero Token
// (and the value returned by None) never cancels — the eternal,
// always-inactive token.
type Token struct {
	src *Source
}

// None returns the eternal token that never cancels.
func None() Token {
	return Token{}
}

// IsCancelled reports whether the underlying source has fired.
func (t Token) IsCancelled() bool {
	if t.src == nil {
		return false
	}
	return t.src.IsCancelled()
}

// IsEternal reports whether t can never cancel (the None() token).
func (t Token) IsEternal() bool {
	return t.src == nil
}

// Subscribe registers fn to run when the token cancels. If it has
// already cancelled, fn runs synchronously before Subscribe returns.
// The returned Subscription's Unsubscribe detaches fn; detaching while
// fn is itself executing on another goroutine blocks until fn returns,
// so callers never observe a captured context torn down mid-callback.
func (t Token) Subscribe(fn func()) Subscription {
	if t.src == nil {
		// Eternal token: nothing to subscribe to, nothing ever fires.
		return Subscription{}
	}
	return t.src.subscribe(fn)
}

// Subscription is the handle Subscribe returns. The zero value is an
// inert, already-detached subscription (used for the eternal token and
// for the synchronous "already cancelled" path).
type Subscription struct {
	src *Source
	id  uint64
}

// Unsubscribe detaches the callback. Safe to call multiple times and
// safe to call while the source is mid-cancel; if this subscription's
// callback is the one currently executing, Unsubscribe waits for it to
// finish before returning.
func (s Subscription) Unsubscribe() {
	if s.src == nil {
		return
	}
	s.src.unsubscribe(s.id)
}

type subscriber struct {
	fn      func()
	firing  bool
	running chan struct{} // closed once this subscriber's callback returns
}

// Source owns the cancellable state and the subscriber list: the
// handle that triggers the cancel, as opposed to Token which only
// observes it.
type Source struct {
	mu        sync.Mutex
	cancelled bool
	subs      map[uint64]*subscriber
	nextID    uint64
}

// New creates a fresh, not-yet-cancelled Source.
func New() *Source {
	return &Source{subs: map[uint64]*subscriber{}}
}

// Token returns the handle callers should hold to observe this
// source's cancellation.
func (s *Source) Token() Token {
	return Token{src: s}
}

// IsCancelled reports whether Cancel has already been called.
func (s *Source) IsCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Cancel marks the source cancelled for good — cancellation is
// one-shot — and then fires every live subscription's callback exactly
// once, in registration order. Subscriptions added concurrently while
// Cancel is iterating observe "already cancelled" and run immediately
// instead of being added to the (now irrelevant) list.
func (s *Source) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	// subs is keyed by id and Go map iteration order is randomized, so
	// ids must be put back in registration order before firing. id is
	// assigned from the monotonically increasing nextID counter, so a
	// numeric sort recovers that order.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	s.mu.Unlock()

	// Callbacks run outside the lock so a callback that itself
	// subscribes (re-entrant during fire) doesn't deadlock, and so a
	// concurrent Unsubscribe can observe the in-flight callback (see
	// the firing flag below) instead of racing a use-after-free.
	for _, id := range ids {
		s.mu.Lock()
		sub, ok := s.subs[id]
		if ok {
			sub.firing = true
		}
		s.mu.Unlock()
		if !ok {
			// Unsubscribed before its turn; never runs.
			continue
		}

		sub.fn()

		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(sub.running)
	}
}

func (s *Source) subscribe(fn func()) Subscription {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		fn()
		return Subscription{}
	}

	id := s.nextID
	s.nextID++
	sub := &subscriber{fn: fn, running: make(chan struct{})}
	s.subs[id] = sub
	s.mu.Unlock()

	return Subscription{src: s, id: id}
}

func (s *Source) unsubscribe(id uint64) {
	s.mu.Lock()
	sub, ok := s.subs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if sub.firing {
		s.mu.Unlock()
		<-sub.running
		return
	}
	delete(s.subs, id)
	s.mu.Unlock()
}
