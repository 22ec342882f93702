// Package notify carries payload-free change signals from a mutating
// component to its subscribers.
package notify

import (
	"sync"
)

// Signal is a registry of callbacks invoked on every Notify. It carries no
// payload: subscribers re-read whatever state they care about.
// All methods are safe for concurrent use.
type Signal struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func()
}

// NewSignal creates a signal with no subscribers.
func NewSignal() *Signal {
	return &Signal{subs: map[uint64]func(){}}
}

// Subscription is the disposal handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel removes the callback. Calling it more than once is harmless.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Subscribe registers fn. A nil fn is ignored and yields an inert handle.
func (s *Signal) Subscribe(fn func()) *Subscription {
	if fn == nil {
		return &Subscription{cancel: func() {}}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return &Subscription{cancel: func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}}
}

// Notify invokes every registered callback once. Callbacks run on the
// caller's goroutine, outside the registry lock, so they may subscribe or
// cancel without deadlocking.
func (s *Signal) Notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// Len reports the number of live subscriptions.
func (s *Signal) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Forward re-emits every signal from src on dst, unmodified.
func Forward(src, dst *Signal) *Subscription {
	return src.Subscribe(dst.Notify)
}
