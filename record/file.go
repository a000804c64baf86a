package record

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"

	"github.com/fazildgr8/stretch-ai/types"
	"github.com/fazildgr8/stretch-ai/wire"
)

// FileSink writes frames to a log file as length-prefixed codec
// payloads. Writes are buffered; Flush pushes them to the OS and
// fsyncs. Each sink owns a fresh file, so a recording is one
// contiguous frame sequence from offset zero.
type FileSink struct {
	mu     sync.Mutex
	codec  wire.Codec
	file   *os.File
	buf    *bufio.Writer
	frames int64
	closed bool
}

// NewFileSink creates the parent directory if needed and opens path
// for writing, truncating any previous recording there.
func NewFileSink(path string, codec wire.Codec) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("record: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("record: open log: %w", err)
	}
	return &FileSink{
		codec: codec,
		file:  f,
		buf:   bufio.NewWriter(f),
	}, nil
}

// Append implements Sink. The frame is encoded with the sink's codec
// and framed exactly as on the wire, so recorded logs and live
// streams share one decoder.
func (s *FileSink) Append(ctx context.Context, frame types.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}

	payload, err := wire.EncodeFrame(s.codec, frame)
	if err != nil {
		return fmt.Errorf("record: encode frame: %w", err)
	}
	if err := wire.WriteFrame(s.buf, payload); err != nil {
		return fmt.Errorf("record: write frame: %w", err)
	}
	s.frames++
	return nil
}

// Flush implements Sink. Buffered frames are written through and the
// file is fsynced.
func (s *FileSink) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	return s.flushLocked()
}

func (s *FileSink) flushLocked() error {
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("record: flush log: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("record: sync log: %w", err)
	}
	return nil
}

// Close implements Sink. Remaining buffered frames are flushed before
// the file closes; both errors are reported.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.flushLocked()
	return multierr.Append(err, s.file.Close())
}

// Frames returns the number of frames appended so far.
func (s *FileSink) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Verify FileSink implements Sink.
var _ Sink = (*FileSink)(nil)
