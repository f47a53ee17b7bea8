// Package codec implements mvent's value algebra: nulls, booleans, signed
// 64-bit integers, floats, byte strings, unicode strings, ordered lists and
// string-keyed maps, arbitrarily nested. It is a thin, pooled wrapper around
// msgpack (github.com/vmihailenco/msgpack/v5), a tagged self-describing
// binary format whose native type set already matches the value algebra,
// so no custom TLV format is introduced.
package codec
