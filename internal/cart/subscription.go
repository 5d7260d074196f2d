package cart

import "sync"

// Subscribe registers fn for every mutation committed from now on. Listeners
// are called in registration order. The returned func removes the listener; it
// may be called more than once and from inside a listener.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	s.mu.Lock()
	sub.since = s.seq
	s.listeners = append(s.listeners, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(sub) })
	}
}

func (s *Store) unsubscribe(sub *subscription) {
	sub.active.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Copy instead of shifting in place: a delivery round may still be
	// ranging over the old slice.
	kept := make([]*subscription, 0, len(s.listeners))
	for _, l := range s.listeners {
		if l != sub {
			kept = append(kept, l)
		}
	}
	s.listeners = kept
}

// enqueue records an event for the mutation just applied. Caller holds the
// write lock.
func (s *Store) enqueue(kind EventKind, productID string, before, after int) {
	s.seq++
	s.pending = append(s.pending, Event{
		Seq:       s.seq,
		Kind:      kind,
		ProductID: productID,
		Before:    before,
		After:     after,
		Total:     s.total,
		ItemCount: s.itemCount,
		LineCount: s.order.Len(),
	})
}

// flush delivers queued events unless another goroutine is already doing so.
func (s *Store) flush() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	defer func() {
		s.delivering = false
		s.mu.Unlock()
	}()

	for len(s.pending) > 0 {
		ev := s.pending[0]
		s.pending = s.pending[1:]
		s.deliver(s.listeners, ev)
	}
	s.pending = nil
}

// deliver runs the listeners without the lock held and takes it back before
// returning, also when a listener panics.
func (s *Store) deliver(subs []*subscription, ev Event) {
	s.mu.Unlock()
	defer s.mu.Lock()
	for _, sub := range subs {
		if sub.active.Load() && ev.Seq > sub.since {
			sub.fn(ev)
		}
	}
}
