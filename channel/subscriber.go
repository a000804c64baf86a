package channel

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fazildgr8/stretch-ai/wire"
)

// Subscriber dial defaults.
const (
	defaultDialTimeout = 5 * time.Second
	defaultDialRetries = 3
	dialBackoffUnit    = 500 * time.Millisecond
)

// SubscriberConfig configures a subscribing channel endpoint.
type SubscriberConfig struct {
	// Addr is the publisher's TCP address.
	Addr string
	// Policy is the inbound queue policy.
	Policy Policy
	// DialTimeout bounds a single dial attempt. Defaults to 5s.
	DialTimeout time.Duration
	// DialRetries is the number of additional dial attempts after the
	// first fails, with exponential backoff. Defaults to 3.
	DialRetries int
}

// Subscriber is the subscribe side of a channel. A background read
// loop frames payloads into the policy mailbox; Receive hands out the
// latest available payload. After a transport failure the subscriber
// drains what it buffered, then reports the failure on every call.
type Subscriber struct {
	addr   string
	policy Policy
	conn   net.Conn
	box    box

	cancel context.CancelFunc
	ctx    context.Context
	done   chan struct{}

	failOnce sync.Once
	failed   chan struct{}
	failMu   sync.Mutex
	failure  error

	received  atomic.Int64
	displaced atomic.Int64
	attempts  int
}

// Dial connects to a publisher, retrying with exponential backoff, and
// starts the read loop.
func Dial(ctx context.Context, cfg SubscriberConfig) (*Subscriber, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.DialRetries < 0 {
		cfg.DialRetries = defaultDialRetries
	}

	conn, attempts, err := dialWithRetry(ctx, cfg.Addr, cfg.DialTimeout, cfg.DialRetries)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Subscriber{
		addr:     cfg.Addr,
		policy:   cfg.Policy,
		conn:     conn,
		box:      newBox(cfg.Policy),
		ctx:      runCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		failed:   make(chan struct{}),
		attempts: attempts,
	}

	go s.readLoop()
	return s, nil
}

// readLoop frames payloads from the connection into the mailbox until
// the connection dies or the subscriber closes.
func (s *Subscriber) readLoop() {
	defer close(s.done)

	decoder := wire.NewFrameDecoder(s.conn)
	for {
		payload, err := decoder.ReadFrame()
		if err != nil {
			select {
			case <-s.ctx.Done():
				// Local close; not a failure.
				return
			default:
			}
			op := "read"
			if errors.Is(err, io.EOF) {
				op = "disconnect"
			}
			s.fail(&TransportError{Op: op, Endpoint: s.addr, Err: err})
			return
		}

		s.received.Add(1)
		if s.box.Offer(payload) {
			s.displaced.Add(1)
		}
	}
}

func (s *Subscriber) fail(err error) {
	s.failOnce.Do(func() {
		s.failMu.Lock()
		s.failure = err
		s.failMu.Unlock()
		close(s.failed)
	})
}

func (s *Subscriber) transportFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failure
}

// Receive returns the next payload per the channel policy. A timeout
// with nothing pending returns ErrNoData, which is not a failure.
// Already-buffered payloads are delivered before a transport failure
// is surfaced.
func (s *Subscriber) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if p, ok := s.box.Poll(); ok {
			return p, nil
		}
		if err := s.transportFailure(); err != nil {
			return nil, err
		}

		select {
		case <-s.box.Ready():
		case <-s.failed:
		case <-timer.C:
			return nil, ErrNoData
		case <-s.ctx.Done():
			return nil, ErrClosed
		}
	}
}

// Next blocks until a payload arrives, the context is canceled, or the
// channel fails. Used by consumers that want every deliverable payload
// rather than a polling cadence.
func (s *Subscriber) Next(ctx context.Context) ([]byte, error) {
	for {
		if p, ok := s.box.Poll(); ok {
			return p, nil
		}
		if err := s.transportFailure(); err != nil {
			return nil, err
		}

		select {
		case <-s.box.Ready():
		case <-s.failed:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ctx.Done():
			return nil, ErrClosed
		}
	}
}

// Close stops the read loop and releases the connection.
func (s *Subscriber) Close() error {
	s.cancel()
	err := s.conn.Close()
	select {
	case <-s.done:
	case <-time.After(joinTimeout):
	}
	return err
}

// SubStats is a snapshot of subscriber counters.
type SubStats struct {
	// Received counts payloads framed off the wire.
	Received int64
	// Dropped counts bounded-policy drop-oldest displacements.
	Dropped int64
	// Conflated counts conflated-policy overwrites.
	Conflated int64
	// DialAttempts counts connection attempts, including the first.
	DialAttempts int
	// Failed reports whether the channel has died.
	Failed bool
}

// Stats returns a snapshot of subscriber counters.
func (s *Subscriber) Stats() SubStats {
	st := SubStats{
		Received:     s.received.Load(),
		DialAttempts: s.attempts,
		Failed:       s.transportFailure() != nil,
	}
	if s.policy.Kind == PolicyConflated {
		st.Conflated = s.displaced.Load()
	} else {
		st.Dropped = s.displaced.Load()
	}
	return st
}
