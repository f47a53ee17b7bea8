package codec

import (
	"bytes"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

type encoderEntry struct {
	buf *bytes.Buffer
	enc *msgpack.Encoder
}

var encoderPool = sync.Pool{
	New: func() any {
		buf := new(bytes.Buffer)
		enc := msgpack.NewEncoder(buf)
		enc.SetCustomStructTag("codec")
		return &encoderEntry{buf: buf, enc: enc}
	},
}

var decoderPool = sync.Pool{
	New: func() any {
		dec := msgpack.NewDecoder(bytes.NewReader(nil))
		dec.SetCustomStructTag("codec")
		return dec
	},
}

// Encode marshals a value from mvent's value algebra into its wire bytes.
// v must be one of: nil, bool, a signed/unsigned integer, a float, string,
// []byte, a slice of encodable values, a map[string]any of encodable
// values, or a struct with `codec` field tags (used internally for record
// types like router.Request).
func Encode(v any) ([]byte, error) {
	entry := encoderPool.Get().(*encoderEntry)
	defer encoderPool.Put(entry)

	entry.buf.Reset()
	if err := entry.enc.Encode(v); err != nil {
		return nil, err
	}

	out := make([]byte, entry.buf.Len())
	copy(out, entry.buf.Bytes())
	return out, nil
}

// Decode unmarshals wire bytes produced by Encode back into Go's generic
// representation of the value algebra (map[string]any for maps, []any for
// lists, etc).
func Decode(raw []byte) (any, error) {
	dec := decoderPool.Get().(*msgpack.Decoder)
	defer decoderPool.Put(dec)

	dec.Reset(bytes.NewReader(raw))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// DecodeInto unmarshals wire bytes into a concrete Go type, for internal
// record types (router request/response records) that don't
// round-trip through the generic any representation.
func DecodeInto(raw []byte, target any) error {
	dec := decoderPool.Get().(*msgpack.Decoder)
	defer decoderPool.Put(dec)

	dec.Reset(bytes.NewReader(raw))
	// Reset clears the decoder's custom struct tag, so set it again.
	dec.SetCustomStructTag("codec")
	return dec.Decode(target)
}

// normalize walks a decoded value and converts msgpack's default
// map[string]interface{} results (already what we want) while leaving other
// types untouched. Kept as a seam for future algebra normalization (e.g.
// collapsing distinct integer widths to int64) without touching call sites.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			t[k] = normalize(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = normalize(inner)
		}
		return t
	default:
		return t
	}
}
