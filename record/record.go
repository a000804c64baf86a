// Package record persists telemetry frame logs for later analysis.
//
// A Sink appends frames as they arrive; FileSink writes them to disk
// as length-prefixed codec payloads (the same framing the channels
// use on the wire), and Reader iterates a recorded log back,
// distinguishing a cleanly ended recording from one cut off
// mid-frame.
package record

import (
	"context"
	"errors"
	"sync"

	"github.com/fazildgr8/stretch-ai/types"
)

// ErrSinkClosed is returned by appends to a closed sink.
var ErrSinkClosed = errors.New("record sink closed")

// Sink accepts telemetry frames for persistence.
type Sink interface {
	// Append persists one frame. Frames are written in call order.
	Append(ctx context.Context, frame types.Frame) error

	// Flush forces buffered frames to durable storage.
	Flush(ctx context.Context) error

	// Close flushes and releases sink resources.
	Close() error
}

// StubSink records appends in memory for testing.
type StubSink struct {
	mu sync.Mutex

	// FailAppend, when set, is returned by every Append.
	FailAppend error

	frames  []types.Frame
	flushes int
	closed  bool
}

// NewStubSink creates an empty stub sink.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// Append implements Sink by recording the frame.
func (s *StubSink) Append(_ context.Context, frame types.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if s.FailAppend != nil {
		return s.FailAppend
	}
	s.frames = append(s.frames, frame)
	return nil
}

// Flush implements Sink.
func (s *StubSink) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.flushes++
	return nil
}

// Close implements Sink.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Frames returns a copy of the appended frames.
func (s *StubSink) Frames() []types.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Flushes returns the number of Flush calls.
func (s *StubSink) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Closed reports whether Close has been called.
func (s *StubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Verify StubSink implements Sink.
var _ Sink = (*StubSink)(nil)
