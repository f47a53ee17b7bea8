package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripScalars(t *testing.T) {
	cases := []any{
		nil,
		true,
		false,
		int64(-42),
		uint64(42),
		3.1415,
		"hello",
		[]byte("raw bytes"),
	}

	for _, v := range cases {
		raw, err := Encode(v)
		require.NoError(t, err)

		got, err := Decode(raw)
		require.NoError(t, err)

		if v == nil {
			require.Nil(t, got)
			continue
		}
		require.EqualValues(t, v, got)
	}
}

func TestRoundTripNestedCollections(t *testing.T) {
	value := map[string]any{
		"name": "Bob",
		"tags": []any{"a", "b", int64(3)},
		"nested": map[string]any{
			"ok": true,
		},
	}

	raw, err := Encode(value)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestDecodeIntoStruct(t *testing.T) {
	type envelope struct {
		Seq     uint64 `codec:"seq"`
		Payload any    `codec:"payload"`
	}

	raw, err := Encode(envelope{Seq: 7, Payload: "hi"})
	require.NoError(t, err)

	var out envelope
	require.NoError(t, DecodeInto(raw, &out))
	require.Equal(t, uint64(7), out.Seq)
	require.Equal(t, "hi", out.Payload)
}
