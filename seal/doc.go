// Package seal implements the encryption transformer: an authenticated
// symmetric cipher wrapping values already produced by codec and compress.
// Ciphertext layout is nonce || ciphertext || tag, built on
// golang.org/x/crypto/chacha20poly1305, an AEAD well suited to a single
// shared process-local key (as opposed to a recipient-based asymmetric
// scheme, which would need per-recipient key management this design has
// no use for).
package seal
