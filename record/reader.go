package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fazildgr8/stretch-ai/types"
	"github.com/fazildgr8/stretch-ai/wire"
)

// ErrTruncated marks a recording that ends mid-frame, typically from
// a recorder killed before its final flush. Frames read before the
// cut are intact.
var ErrTruncated = errors.New("recording truncated")

// Reader iterates the frames of a recorded log.
type Reader struct {
	codec wire.Codec
	file  *os.File
	dec   *wire.FrameDecoder
}

// OpenReader opens a recorded log for reading.
func OpenReader(path string, codec wire.Codec) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: open log: %w", err)
	}
	return &Reader{
		codec: codec,
		file:  f,
		dec:   wire.NewFrameDecoder(bufio.NewReader(f)),
	}, nil
}

// Next returns the next frame.
//
// Errors:
//   - io.EOF: the recording ended cleanly after a complete frame
//   - ErrTruncated: the recording was cut off mid-frame
//
// Payloads with an unrecognized kind are skipped, so logs written by
// a newer recorder still replay.
func (r *Reader) Next() (types.Frame, error) {
	for {
		payload, err := r.dec.ReadFrame()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			var werr *wire.Error
			if errors.As(err, &werr) && werr.Kind == wire.ErrorPartial {
				return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
			}
			return nil, fmt.Errorf("record: read frame: %w", err)
		}

		frame, err := wire.DecodeTelemetry(r.codec, payload)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownKind) {
				continue
			}
			return nil, fmt.Errorf("record: decode frame: %w", err)
		}
		return frame, nil
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
