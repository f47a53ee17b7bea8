// Package compress implements the optional value-compression stage that
// sits between the codec and the encryption transformer: encoded values at
// or above a configured threshold are zstd-compressed before encryption,
// never the reverse — encrypting first would make the ciphertext
// incompressible. Encoders and decoders are pooled to avoid reallocating
// zstd's internal state on every call.
package compress
