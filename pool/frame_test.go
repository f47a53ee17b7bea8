package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	key := "hello"
	value := []byte("world, this is a value")
	buf := make([]byte, frameSize(len(key), len(value)))

	n := encodeFrame(buf, frameLive, key, value, 1000, 2000, 7)
	require.Equal(t, len(buf), n)

	f, consumed, err := decodeFrame(buf)
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	require.Equal(t, frameLive, f.frameType)
	require.Equal(t, key, f.key)
	require.Equal(t, value, f.value)
	require.EqualValues(t, 1000, f.createdNanos)
	require.EqualValues(t, 2000, f.ttlNanos)
	require.EqualValues(t, 7, f.version)
}

func TestDecodeFrameDetectsCorruption(t *testing.T) {
	buf := make([]byte, frameSize(3, 3))
	encodeFrame(buf, frameLive, "abc", []byte("xyz"), 1, 0, 1)
	buf[len(buf)-1] ^= 0xFF // flip a bit in the CRC

	_, _, err := decodeFrame(buf)
	require.Error(t, err)
}

func TestHeaderRoundTrip(t *testing.T) {
	region := make([]byte, headerSize)
	h := header{capacity: 4096, writeCursor: 128, entryCount: 3, generation: 2}
	writeHeader(region, h)

	got, err := readHeader(region)
	require.NoError(t, err)
	require.Equal(t, h, got)
}
