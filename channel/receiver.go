package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/fazildgr8/stretch-ai/wire"
)

// ReceiverConfig configures the listening consumer side of a channel.
type ReceiverConfig struct {
	// Addr is the TCP listen address.
	Addr string
	// Policy is the inbound queue policy, shared by all producers.
	Policy Policy
}

// Receiver is the consuming end of a dial-in channel: it accepts any
// number of Sender connections and merges their framed payloads into
// one policy mailbox. Producers come and go freely; a dead producer
// never poisons the receiver. Only Close stops it.
type Receiver struct {
	ln     net.Listener
	policy Policy
	box    box

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	conns  map[int64]net.Conn
	nextID int64
	closed bool

	received     atomic.Int64
	delivered    atomic.Int64
	displaced    atomic.Int64
	producers    atomic.Int64
	readFailures atomic.Int64
}

// NewReceiver binds the listen address and starts accepting producers.
func NewReceiver(cfg ReceiverConfig) (*Receiver, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, &TransportError{Op: "listen", Endpoint: cfg.Addr, Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Receiver{
		ln:     ln,
		policy: cfg.Policy,
		box:    newBox(cfg.Policy),
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[int64]net.Conn),
	}

	r.wg.Add(1)
	go r.acceptLoop()
	return r, nil
}

// Addr returns the bound listen address.
func (r *Receiver) Addr() string {
	return r.ln.Addr().String()
}

func (r *Receiver) acceptLoop() {
	defer r.wg.Done()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			// Listener closed on shutdown.
			return
		}

		r.mu.Lock()
		r.nextID++
		id := r.nextID
		r.conns[id] = conn
		r.mu.Unlock()
		r.producers.Add(1)

		r.wg.Add(1)
		go r.readConn(id, conn)
	}
}

// readConn frames payloads from one producer into the shared mailbox.
// A producer disconnect or decode error closes only that connection.
func (r *Receiver) readConn(id int64, conn net.Conn) {
	defer r.wg.Done()
	defer r.dropConn(id, conn)

	decoder := wire.NewFrameDecoder(conn)
	for {
		payload, err := decoder.ReadFrame()
		if err != nil {
			select {
			case <-r.ctx.Done():
				return
			default:
			}
			if !errors.Is(err, io.EOF) {
				r.readFailures.Add(1)
			}
			return
		}

		r.received.Add(1)
		if r.box.Offer(payload) {
			r.displaced.Add(1)
		}
	}
}

func (r *Receiver) dropConn(id int64, conn net.Conn) {
	r.mu.Lock()
	if _, ok := r.conns[id]; ok {
		delete(r.conns, id)
		r.producers.Add(-1)
	}
	r.mu.Unlock()
	_ = conn.Close()
}

// Receive returns the next payload per the channel policy. A timeout
// with nothing pending returns ErrNoData, which is not a failure.
// After Close, buffered payloads drain first, then ErrClosed.
func (r *Receiver) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if p, ok := r.box.Poll(); ok {
			r.delivered.Add(1)
			return p, nil
		}

		select {
		case <-r.box.Ready():
		case <-timer.C:
			return nil, ErrNoData
		case <-r.ctx.Done():
			return nil, ErrClosed
		}
	}
}

// Next blocks until a payload arrives, the context is canceled, or the
// receiver closes.
func (r *Receiver) Next(ctx context.Context) ([]byte, error) {
	for {
		if p, ok := r.box.Poll(); ok {
			r.delivered.Add(1)
			return p, nil
		}

		select {
		case <-r.box.Ready():
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.ctx.Done():
			return nil, ErrClosed
		}
	}
}

// Producers returns the number of currently connected producers.
func (r *Receiver) Producers() int {
	return int(r.producers.Load())
}

// Close stops accepting, disconnects all producers, and joins the read
// loops with a bounded timeout.
func (r *Receiver) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	err := r.ln.Close()

	r.mu.Lock()
	for id, conn := range r.conns {
		delete(r.conns, id)
		r.producers.Add(-1)
		_ = conn.Close()
	}
	r.mu.Unlock()

	if !waitTimeout(&r.wg, joinTimeout) {
		err = multierr.Append(err, fmt.Errorf("receiver loops did not stop within %s", joinTimeout))
	}
	return err
}

// RecvStats is a snapshot of receiver counters.
type RecvStats struct {
	// Received counts payloads framed off the wire across all producers.
	Received int64
	// Delivered counts payloads handed to the consumer.
	Delivered int64
	// Dropped counts bounded-policy drop-oldest displacements.
	Dropped int64
	// Conflated counts conflated-policy overwrites.
	Conflated int64
	// Producers is the number of currently connected producers.
	Producers int
	// ReadFailures counts producer connections that died uncleanly.
	ReadFailures int64
}

// Stats returns a snapshot of receiver counters.
func (r *Receiver) Stats() RecvStats {
	st := RecvStats{
		Received:     r.received.Load(),
		Delivered:    r.delivered.Load(),
		Producers:    int(r.producers.Load()),
		ReadFailures: r.readFailures.Load(),
	}
	if r.policy.Kind == PolicyConflated {
		st.Conflated = r.displaced.Load()
	} else {
		st.Dropped = r.displaced.Load()
	}
	return st
}
