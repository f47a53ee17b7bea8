package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// flagByte prefixes every value mvent ever writes to a frame so Decompress
// can tell compressed payloads from passthrough ones without consulting any
// out-of-band state.
const (
	flagPlain     byte = 0
	flagCompressed byte = 1
)

// Transformer compresses values of at least Threshold bytes before they are
// handed to the encryption transformer (or written directly, if encryption
// is disabled). A Threshold of 0 disables compression entirely.
type Transformer struct {
	Threshold int

	encoders sync.Pool
	decoders sync.Pool
}

// NewTransformer builds a Transformer with the given threshold. Values
// smaller than threshold are stored with a one-byte "plain" flag and no
// compression overhead.
func NewTransformer(threshold int) *Transformer {
	t := &Transformer{Threshold: threshold}
	t.encoders.New = func() any {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			panic(err) // NewWriter(nil) only fails on invalid options, never at runtime
		}
		return enc
	}
	t.decoders.New = func() any {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic(err)
		}
		return dec
	}
	return t
}

// Compress prefixes raw with a flag byte, compressing the payload if it
// meets the threshold and compression actually shrinks it.
func (t *Transformer) Compress(raw []byte) []byte {
	if t.Threshold <= 0 || len(raw) < t.Threshold {
		return append([]byte{flagPlain}, raw...)
	}

	enc := t.encoders.Get().(*zstd.Encoder)
	defer t.encoders.Put(enc)

	compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)))
	if len(compressed) >= len(raw) {
		return append([]byte{flagPlain}, raw...)
	}
	return append([]byte{flagCompressed}, compressed...)
}

// Decompress reverses Compress, dispatching on the leading flag byte.
func (t *Transformer) Decompress(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("compress: empty frame")
	}

	flag, body := raw[0], raw[1:]
	switch flag {
	case flagPlain:
		return body, nil
	case flagCompressed:
		dec := t.decoders.Get().(*zstd.Decoder)
		defer t.decoders.Put(dec)
		return dec.DecodeAll(body, nil)
	default:
		return nil, fmt.Errorf("compress: unknown flag byte %d", flag)
	}
}
