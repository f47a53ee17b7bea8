package compress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripBelowThreshold(t *testing.T) {
	tr := NewTransformer(64)
	raw := []byte("short")

	out := tr.Compress(raw)
	back, err := tr.Decompress(out)
	require.NoError(t, err)
	require.True(t, bytes.Equal(raw, back))
}

func TestRoundTripAboveThreshold(t *testing.T) {
	tr := NewTransformer(16)
	raw := []byte(strings.Repeat("abcdefgh", 64))

	out := tr.Compress(raw)
	require.Less(t, len(out), len(raw), "highly repetitive input should compress")

	back, err := tr.Decompress(out)
	require.NoError(t, err)
	require.True(t, bytes.Equal(raw, back))
}

func TestThresholdZeroDisablesCompression(t *testing.T) {
	tr := NewTransformer(0)
	raw := []byte(strings.Repeat("x", 1000))

	out := tr.Compress(raw)
	require.Equal(t, flagPlain, out[0])
}
