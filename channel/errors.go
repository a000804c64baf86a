package channel

import (
	"errors"
	"fmt"
)

// Sentinel results. ErrNoData is the ordinary no-payload-yet result of
// a timed receive; it is not a channel failure.
var (
	// ErrNoData indicates a receive timed out with no payload pending.
	ErrNoData = errors.New("no data available")
	// ErrClosed indicates the channel was closed locally.
	ErrClosed = errors.New("channel closed")
)

// TransportError is a fatal channel failure: the connection reset, the
// stream framing broke, or a payload could not be decoded. It is
// surfaced to the owning component once and the channel is dead
// afterwards; the owner decides whether to restart the process.
type TransportError struct {
	// Op is the operation that failed (dial, read, write, accept).
	Op string
	// Endpoint is the remote address.
	Endpoint string
	// Err is the underlying error.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if err is a fatal transport failure.
func IsTransportError(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}
