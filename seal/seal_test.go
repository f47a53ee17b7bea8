package seal

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := randomKey(t)
	tr, err := New(key)
	require.NoError(t, err)

	plaintext := []byte("super secret payload")
	ciphertext, err := tr.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	back, err := tr.Decrypt("k", ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, back)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	tr1, err := New(randomKey(t))
	require.NoError(t, err)
	tr2, err := New(randomKey(t))
	require.NoError(t, err)

	ciphertext, err := tr1.Encrypt([]byte("data"))
	require.NoError(t, err)

	_, err = tr2.Decrypt("k", ciphertext)
	require.Error(t, err)
}
