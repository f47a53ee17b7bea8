package seal

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mvent/mvent/mverr"
)

// Transformer encrypts and decrypts pool values with a single process-local
// key. Two processes attaching to the same pool must be configured with the
// same key, or decryption on one of them will fail with mverr.DecryptError.
type Transformer struct {
	aead cipher.AEAD
}

// KeySize is the required length, in bytes, of keys passed to New.
const KeySize = chacha20poly1305.KeySize

// New builds a Transformer from a raw 32-byte key.
func New(key []byte) (*Transformer, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("seal: invalid key: %w", err)
	}
	return &Transformer{aead: aead}, nil
}

// Encrypt returns nonce || ciphertext || tag for plaintext.
func (t *Transformer) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, t.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("seal: generating nonce: %w", err)
	}

	sealed := t.aead.Seal(nonce, nonce, plaintext, nil)
	return sealed, nil
}

// Decrypt reverses Encrypt. Authentication failures (wrong key, corrupted
// frame) surface as mverr.DecryptError.
func (t *Transformer) Decrypt(key string, sealed []byte) ([]byte, error) {
	nonceSize := t.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, &mverr.DecryptError{Key: key, Err: fmt.Errorf("seal: ciphertext shorter than nonce")}
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := t.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &mverr.DecryptError{Key: key, Err: err}
	}
	return plaintext, nil
}
