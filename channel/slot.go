package channel

import "sync"

// Slot is the conflated mailbox: a single-item cell where a new put
// always overwrites any unread value. It makes the freshness contract
// of conflated channels explicit and testable instead of hiding it in
// transport socket options.
type Slot struct {
	mu         sync.Mutex
	value      []byte
	full       bool
	overwrites uint64

	ready chan struct{}
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{ready: make(chan struct{}, 1)}
}

func newSlot() box { return NewSlot() }

// Offer stores p, overwriting any unread value. Returns true when an
// unread value was overwritten.
func (s *Slot) Offer(p []byte) bool {
	s.mu.Lock()
	overwritten := s.full
	if overwritten {
		s.overwrites++
	}
	s.value = p
	s.full = true
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return overwritten
}

// Poll takes the current value, leaving the slot empty.
func (s *Slot) Poll() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.full {
		return nil, false
	}
	v := s.value
	s.value = nil
	s.full = false
	return v, true
}

// Ready implements box.
func (s *Slot) Ready() <-chan struct{} { return s.ready }

// Pending implements box: a slot holds at most one unread value.
func (s *Slot) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return 1
	}
	return 0
}

// Overwrites reports how many unread values have been displaced.
func (s *Slot) Overwrites() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overwrites
}
