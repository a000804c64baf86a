package client

import (
	"errors"
	"fmt"

	"github.com/fazildgr8/stretch-ai/types"
)

// Sentinel results of the blocking helpers and issuers.
var (
	// ErrTimeout indicates a blocking wait expired before the robot
	// reached the requested state. Recoverable; the caller decides
	// whether to retry or abort.
	ErrTimeout = errors.New("timed out waiting for robot state")
	// ErrNoCommandChannel indicates the client was dialed without a
	// command endpoint.
	ErrNoCommandChannel = errors.New("no command channel configured")
	// ErrNoTelemetry indicates a blocking wait needs the fast state
	// stream and the client was dialed without one.
	ErrNoTelemetry = errors.New("no fast state stream configured")
)

// IngestErrorKind classifies ingest loop outcomes.
type IngestErrorKind string

const (
	// IngestStream marks a dead telemetry stream. Fatal: the cache
	// stops updating for that kind and blocking waits fail fast.
	IngestStream IngestErrorKind = "stream"
	// IngestStale marks a frame skipped by the monotonicity guard.
	// Counted and logged, never fatal.
	IngestStale IngestErrorKind = "stale"
	// IngestCanceled marks an ingest loop stopped by Close.
	IngestCanceled IngestErrorKind = "canceled"
)

// IngestError describes why an ingest loop stopped or skipped a frame.
type IngestError struct {
	// Kind classifies the outcome.
	Kind IngestErrorKind
	// FrameKind is the stream the error belongs to.
	FrameKind types.FrameKind
	// Err is the underlying error, if any.
	Err error
}

func (e *IngestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ingest %s: %s", e.FrameKind, e.Kind)
	}
	return fmt.Sprintf("ingest %s: %s: %v", e.FrameKind, e.Kind, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}
