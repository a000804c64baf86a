package channel

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fazildgr8/stretch-ai/wire"
)

// defaultSendTimeout bounds a single Send so a wedged peer cannot
// stall the caller indefinitely.
const defaultSendTimeout = 2 * time.Second

// SenderConfig configures the dialing producer side of a channel.
type SenderConfig struct {
	// Addr is the receiver's TCP address.
	Addr string
	// DialTimeout bounds a single dial attempt. Defaults to 5s.
	DialTimeout time.Duration
	// DialRetries is the number of additional dial attempts after the
	// first fails, with exponential backoff. Defaults to 3.
	DialRetries int
	// WriteTimeout bounds each Send. Defaults to 2s.
	WriteTimeout time.Duration
}

// Sender is the producing end of a dial-in channel: it connects to a
// Receiver and writes framed payloads. Sends are fire-and-forget with
// a bounded write deadline; any write error is a fatal TransportError
// and the sender is dead afterwards.
type Sender struct {
	addr         string
	conn         net.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	failed error

	sent     atomic.Int64
	attempts int
}

// DialSender connects to a receiver, retrying with exponential backoff.
func DialSender(ctx context.Context, cfg SenderConfig) (*Sender, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.DialRetries < 0 {
		cfg.DialRetries = defaultDialRetries
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultSendTimeout
	}

	conn, attempts, err := dialWithRetry(ctx, cfg.Addr, cfg.DialTimeout, cfg.DialRetries)
	if err != nil {
		return nil, err
	}

	return &Sender{
		addr:         cfg.Addr,
		conn:         conn,
		writeTimeout: cfg.WriteTimeout,
		attempts:     attempts,
	}, nil
}

// Send frames one payload onto the connection. Returns a
// TransportError once the connection has failed; a failed sender stays
// failed.
func (s *Sender) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed != nil {
		return s.failed
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		s.failed = &TransportError{Op: "send", Endpoint: s.addr, Err: err}
		return s.failed
	}
	if err := wire.WriteFrame(s.conn, payload); err != nil {
		s.failed = &TransportError{Op: "send", Endpoint: s.addr, Err: err}
		return s.failed
	}

	s.sent.Add(1)
	return nil
}

// Close releases the connection.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// SenderStats is a snapshot of sender counters.
type SenderStats struct {
	// Sent counts payloads framed onto the wire.
	Sent int64
	// DialAttempts counts connection attempts, including the first.
	DialAttempts int
	// Failed reports whether the connection has died.
	Failed bool
}

// Stats returns a snapshot of sender counters.
func (s *Sender) Stats() SenderStats {
	s.mu.Lock()
	failed := s.failed != nil
	s.mu.Unlock()
	return SenderStats{
		Sent:         s.sent.Load(),
		DialAttempts: s.attempts,
		Failed:       failed,
	}
}
