package wire

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec marshals payloads for the wire. Implementations must be
// deterministic and symmetric: both processes are configured with the
// same codec name, so a codec only has to round-trip with itself.
type Codec interface {
	// Name is the config-facing codec identifier.
	Name() string
	// ContentType is the MIME content type of encoded payloads.
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Codec names accepted in channel configuration.
const (
	CodecMsgpack = "msgpack"
	CodecCBOR    = "cbor"
	CodecJSON    = "json"
)

// Default returns the msgpack codec, the wire default.
func Default() Codec { return msgpackCodec{} }

// ByName returns the named codec. Unknown names are an error so a
// misconfigured channel fails at startup, not mid-stream.
func ByName(name string) (Codec, error) {
	switch name {
	case CodecMsgpack, "":
		return msgpackCodec{}, nil
	case CodecCBOR:
		return newCBORCodec()
	case CodecJSON:
		return jsonCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (must be msgpack, cbor, or json)", name)
	}
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string        { return CodecMsgpack }
func (msgpackCodec) ContentType() string { return "application/msgpack" }

func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// newCBORCodec builds a canonical CBOR codec (RFC 8949 core profile).
func newCBORCodec() (Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec{enc: em, dec: dm}, nil
}

func (cborCodec) Name() string        { return CodecCBOR }
func (cborCodec) ContentType() string { return "application/cbor" }

func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

type jsonCodec struct{}

func (jsonCodec) Name() string        { return CodecJSON }
func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
