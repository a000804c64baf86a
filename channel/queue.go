package channel

import "sync"

// BoundedQueue is the strict-order mailbox: FIFO up to a fixed
// capacity, dropping the OLDEST payload on overflow so the producer is
// never blocked and the freshest payloads survive.
type BoundedQueue struct {
	mu      sync.Mutex
	buf     [][]byte
	head    int
	count   int
	dropped uint64

	ready chan struct{}
}

// NewBoundedQueue creates a queue holding at most capacity payloads.
func NewBoundedQueue(capacity int) *BoundedQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedQueue{
		buf:   make([][]byte, capacity),
		ready: make(chan struct{}, 1),
	}
}

func newBoundedQueue(capacity int) box { return NewBoundedQueue(capacity) }

// Offer appends p. When the queue is full the oldest payload is
// dropped to make room. Returns true when a payload was dropped.
func (q *BoundedQueue) Offer(p []byte) bool {
	q.mu.Lock()
	droppedOldest := false
	if q.count == len(q.buf) {
		// Drop the oldest: advance head without storing it anywhere.
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped++
		droppedOldest = true
	}
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = p
	q.count++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return droppedOldest
}

// Poll removes and returns the oldest payload.
func (q *BoundedQueue) Poll() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, true
}

// Ready implements box.
func (q *BoundedQueue) Ready() <-chan struct{} { return q.ready }

// Pending implements box.
func (q *BoundedQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Dropped reports how many payloads have been dropped on overflow.
func (q *BoundedQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
