// Package wire implements the framing and payload encoding shared by
// both processes: length-prefixed codec payloads with a kind field for
// forward-compatible dispatch.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fazildgr8/stretch-ai/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including the
	// length prefix. Full observations with uncompressible imagery
	// stay well under this.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// ErrorKind classifies wire errors.
type ErrorKind int

const (
	// ErrorPartial indicates a truncated or incomplete frame.
	ErrorPartial ErrorKind = iota
	// ErrorTooLarge indicates a frame exceeding MaxFrameSize.
	ErrorTooLarge
	// ErrorDecode indicates a payload decoding error.
	ErrorDecode
	// ErrorEncode indicates a payload encoding error.
	ErrorEncode
)

// Error represents a framing or payload coding error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if err is a payload decode error.
// Decode errors poison the stream position on a framed transport, so
// channel readers treat them as transport failures.
func IsDecodeError(err error) bool {
	var werr *Error
	return errors.As(err, &werr) && werr.Kind == ErrorDecode
}

// ErrUnknownKind marks a payload whose kind discriminator is not
// recognized. Consumers skip such payloads so newer peers can add
// kinds without breaking older ones.
var ErrUnknownKind = errors.New("unknown payload kind")

// FrameDecoder decodes length-prefixed frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame and returns the raw payload bytes.
//
// Errors:
//   - io.EOF: stream ended cleanly between frames
//   - *Error with Kind=ErrorPartial: stream ended mid-frame
//   - *Error with Kind=ErrorTooLarge: frame exceeds the limit
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &Error{
			Kind: ErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])

	if payloadSize > MaxPayloadSize {
		return nil, &Error{
			Kind: ErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &Error{
			Kind: ErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// WriteFrame writes one length-prefixed payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return &Error{
			Kind: ErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := w.Write(lengthBuf[:]); err != nil {
		return &Error{Kind: ErrorPartial, Msg: "failed to write length prefix", Err: err}
	}
	if _, err := w.Write(payload); err != nil {
		return &Error{Kind: ErrorPartial, Msg: "failed to write payload", Err: err}
	}
	return nil
}

// EncodePayload marshals v with the codec.
func EncodePayload(c Codec, v any) ([]byte, error) {
	payload, err := c.Marshal(v)
	if err != nil {
		return nil, &Error{Kind: ErrorEncode, Msg: "failed to encode payload", Err: err}
	}
	return payload, nil
}

// kindProbe peeks at the kind field without a full decode.
type kindProbe struct {
	Kind string `msgpack:"kind" json:"kind"`
}

// ProbeKind returns the kind discriminator of a payload.
func ProbeKind(c Codec, payload []byte) (string, error) {
	var probe kindProbe
	if err := c.Unmarshal(payload, &probe); err != nil {
		return "", &Error{
			Kind: ErrorDecode,
			Msg:  "failed to decode payload kind",
			Err:  err,
		}
	}
	return probe.Kind, nil
}

// DecodeTelemetry decodes a telemetry payload into its concrete frame.
// Payloads with an unrecognized kind return ErrUnknownKind; callers
// log and skip them.
func DecodeTelemetry(c Codec, payload []byte) (types.Frame, error) {
	kind, err := ProbeKind(c, payload)
	if err != nil {
		return nil, err
	}

	switch types.FrameKind(kind) {
	case types.FrameKindFastState:
		var f types.FastState
		if err := c.Unmarshal(payload, &f); err != nil {
			return nil, &Error{Kind: ErrorDecode, Msg: "failed to decode fast state", Err: err}
		}
		return &f, nil
	case types.FrameKindFullObservation:
		var f types.FullObservation
		if err := c.Unmarshal(payload, &f); err != nil {
			return nil, &Error{Kind: ErrorDecode, Msg: "failed to decode full observation", Err: err}
		}
		return &f, nil
	case types.FrameKindServo:
		var f types.ServoFrame
		if err := c.Unmarshal(payload, &f); err != nil {
			return nil, &Error{Kind: ErrorDecode, Msg: "failed to decode servo frame", Err: err}
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("kind %q: %w", kind, ErrUnknownKind)
	}
}

// DecodeCommand decodes a command payload. Non-command kinds return
// ErrUnknownKind so the consumer loop can skip them.
func DecodeCommand(c Codec, payload []byte) (*types.Command, error) {
	kind, err := ProbeKind(c, payload)
	if err != nil {
		return nil, err
	}
	if kind != types.CommandKind {
		return nil, fmt.Errorf("kind %q: %w", kind, ErrUnknownKind)
	}

	var cmd types.Command
	if err := c.Unmarshal(payload, &cmd); err != nil {
		return nil, &Error{Kind: ErrorDecode, Msg: "failed to decode command", Err: err}
	}
	return &cmd, nil
}

// EncodeFrame marshals a telemetry frame with the codec.
func EncodeFrame(c Codec, f types.Frame) ([]byte, error) {
	return EncodePayload(c, f)
}

// EncodeCommand marshals a command with the codec.
func EncodeCommand(c Codec, cmd *types.Command) ([]byte, error) {
	return EncodePayload(c, cmd)
}
