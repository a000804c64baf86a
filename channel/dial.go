package channel

import (
	"context"
	"net"
	"time"
)

// dialWithRetry connects to addr, retrying failed attempts with
// exponential backoff (backoff unit doubling per retry). Returns the
// connection, the number of attempts made, and a TransportError when
// every attempt fails.
func dialWithRetry(ctx context.Context, addr string, timeout time.Duration, retries int) (net.Conn, int, error) {
	var conn net.Conn
	var err error
	attempts := 0
	for i := 0; i <= retries; i++ {
		if i > 0 {
			backoff := time.Duration(1<<(i-1)) * dialBackoffUnit
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, attempts, ctx.Err()
			}
		}
		attempts++
		d := net.Dialer{Timeout: timeout}
		conn, err = d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, attempts, nil
		}
	}
	return nil, attempts, &TransportError{Op: "dial", Endpoint: addr, Err: err}
}
