package channel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/fazildgr8/stretch-ai/wire"
)

// joinTimeout bounds how long Close waits for worker goroutines.
const joinTimeout = 2 * time.Second

// PublisherConfig configures a publishing channel endpoint.
type PublisherConfig struct {
	// Addr is the TCP listen address, e.g. "0.0.0.0:4401".
	Addr string
	// Policy is the per-subscriber outbound queue policy.
	Policy Policy
	// WriteTimeout bounds a single frame write to one subscriber.
	// Subscribers that exceed it are disconnected. Zero disables the
	// deadline.
	WriteTimeout time.Duration
}

// Publisher is the publish side of a channel. Each connected
// subscriber gets its own outbound mailbox with the channel's policy
// and its own writer goroutine; a slow or wedged subscriber loses
// frames (or is disconnected) without ever blocking Publish.
type Publisher struct {
	policy       Policy
	writeTimeout time.Duration
	ln           net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	subs   map[int64]*outbound
	nextID int64
	closed bool

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
	conflated atomic.Int64
}

// outbound is one connected subscriber.
type outbound struct {
	id   int64
	conn net.Conn
	box  box
}

// NewPublisher opens the listen socket and starts accepting
// subscribers.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, &TransportError{Op: "listen", Endpoint: cfg.Addr, Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		policy:       cfg.Policy,
		writeTimeout: cfg.WriteTimeout,
		ln:           ln,
		ctx:          ctx,
		cancel:       cancel,
		subs:         make(map[int64]*outbound),
	}

	p.wg.Add(1)
	go p.acceptLoop()

	return p, nil
}

// Addr returns the actual listen address, useful when configured with
// port 0.
func (p *Publisher) Addr() string {
	return p.ln.Addr().String()
}

// Publish offers the payload to every connected subscriber. It never
// blocks on subscriber backpressure: per policy, either the oldest
// pending payload is dropped or the unread payload is overwritten.
func (p *Publisher) Publish(payload []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	targets := make([]*outbound, 0, len(p.subs))
	for _, o := range p.subs {
		targets = append(targets, o)
	}
	p.mu.Unlock()

	p.published.Add(1)
	for _, o := range targets {
		if o.box.Offer(payload) {
			if p.policy.Kind == PolicyConflated {
				p.conflated.Add(1)
			} else {
				p.dropped.Add(1)
			}
		}
	}
	return nil
}

// acceptLoop admits subscribers until the listener closes.
func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for {
		conn, err := p.ln.Accept()
		if err != nil {
			select {
			case <-p.ctx.Done():
				return
			default:
			}
			// Transient accept failure; the listener is still alive.
			continue
		}

		o := &outbound{conn: conn, box: newBox(p.policy)}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			_ = conn.Close()
			return
		}
		p.nextID++
		o.id = p.nextID
		p.subs[o.id] = o
		p.mu.Unlock()

		p.wg.Add(1)
		go p.writeLoop(o)
	}
}

// writeLoop drains one subscriber's mailbox onto its connection.
func (p *Publisher) writeLoop(o *outbound) {
	defer p.wg.Done()
	defer p.dropSubscriber(o)

	for {
		payload, ok := o.box.Poll()
		if !ok {
			select {
			case <-o.box.Ready():
				continue
			case <-p.ctx.Done():
				return
			}
		}

		if p.writeTimeout > 0 {
			_ = o.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
		}
		if err := wire.WriteFrame(o.conn, payload); err != nil {
			return
		}
		p.delivered.Add(1)
	}
}

// dropSubscriber removes a subscriber and closes its connection.
func (p *Publisher) dropSubscriber(o *outbound) {
	p.mu.Lock()
	delete(p.subs, o.id)
	p.mu.Unlock()
	_ = o.conn.Close()
}

// Subscribers returns the current subscriber count.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Close stops accepting, disconnects all subscribers, and joins the
// worker goroutines with a bounded timeout.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	targets := make([]*outbound, 0, len(p.subs))
	for _, o := range p.subs {
		targets = append(targets, o)
	}
	p.mu.Unlock()

	p.cancel()
	err := p.ln.Close()
	for _, o := range targets {
		err = multierr.Append(err, o.conn.Close())
	}

	if !waitTimeout(&p.wg, joinTimeout) {
		err = multierr.Append(err, fmt.Errorf("publisher workers did not stop within %s", joinTimeout))
	}
	return err
}

// PubStats is a snapshot of publisher counters.
type PubStats struct {
	// Published counts Publish calls.
	Published int64
	// Delivered counts frames actually written to subscribers.
	Delivered int64
	// Dropped counts bounded-policy drop-oldest displacements.
	Dropped int64
	// Conflated counts conflated-policy overwrites.
	Conflated int64
	// Subscribers is the current subscriber count.
	Subscribers int
}

// Stats returns a snapshot of publisher counters.
func (p *Publisher) Stats() PubStats {
	return PubStats{
		Published:   p.published.Load(),
		Delivered:   p.delivered.Load(),
		Dropped:     p.dropped.Load(),
		Conflated:   p.conflated.Load(),
		Subscribers: p.Subscribers(),
	}
}

// waitTimeout waits for wg up to d. Returns false on timeout.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
