package pool

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// On-disk frame log layout. Little-endian throughout.

const (
	magic         = "MVNT"
	layoutVersion = uint16(1)

	// headerSize is padded well past the fields actually in use (34 bytes)
	// to a cache-line-friendly round size, leaving room to grow the header
	// without relayouting the frame log.
	headerSize = 64

	frameLive = byte(1)
	frameTomb = byte(2)

	// frameFixedSize is everything in a frame before the variable-length
	// key and value: type(1) + keyLen(2) + valueLen(4) + created(8) +
	// ttl(8) + version(8).
	frameFixedSize = 1 + 2 + 4 + 8 + 8 + 8
	// crcSize is the trailing CRC32C over the frame's fixed header, key
	// and value.
	crcSize = 4
)

var crcTable = crc32.MakeTable(crc32.Castagnoli) // polynomial 0x1EDC6F41

// header mirrors the on-disk pool header.
type header struct {
	capacity    uint64
	writeCursor uint64
	entryCount  uint32
	generation  uint64
}

func writeHeader(region []byte, h header) {
	copy(region[0:4], magic)
	binary.LittleEndian.PutUint16(region[4:6], layoutVersion)
	binary.LittleEndian.PutUint64(region[6:14], h.capacity)
	binary.LittleEndian.PutUint64(region[14:22], h.writeCursor)
	binary.LittleEndian.PutUint32(region[22:26], h.entryCount)
	binary.LittleEndian.PutUint64(region[26:34], h.generation)
}

func readHeader(region []byte) (header, error) {
	if len(region) < headerSize {
		return header{}, fmt.Errorf("pool: backing file smaller than header")
	}
	if string(region[0:4]) != magic {
		return header{}, fmt.Errorf("pool: bad magic %q", region[0:4])
	}
	version := binary.LittleEndian.Uint16(region[4:6])
	if version != layoutVersion {
		return header{}, fmt.Errorf("pool: unsupported layout version %d", version)
	}
	return header{
		capacity:    binary.LittleEndian.Uint64(region[6:14]),
		writeCursor: binary.LittleEndian.Uint64(region[14:22]),
		entryCount:  binary.LittleEndian.Uint32(region[22:26]),
		generation:  binary.LittleEndian.Uint64(region[26:34]),
	}, nil
}

// frame is the decoded, in-memory form of one on-disk record.
type frame struct {
	frameType    byte
	key          string
	value        []byte
	createdNanos int64
	ttlNanos     int64
	version      uint64
	totalSize    int // bytes this frame occupies on disk, header through CRC
}

// frameSize returns the on-disk size of a frame carrying the given key and
// value lengths.
func frameSize(keyLen, valueLen int) int {
	return frameFixedSize + keyLen + valueLen + crcSize
}

// encodeFrame writes a frame into dst (which must be at least frameSize(len(key), len(value)) bytes) and returns the number of bytes written.
func encodeFrame(dst []byte, frameType byte, key string, value []byte, createdNanos, ttlNanos int64, version uint64) int {
	n := 0
	dst[n] = frameType
	n++
	binary.LittleEndian.PutUint16(dst[n:], uint16(len(key)))
	n += 2
	binary.LittleEndian.PutUint32(dst[n:], uint32(len(value)))
	n += 4
	binary.LittleEndian.PutUint64(dst[n:], uint64(createdNanos))
	n += 8
	binary.LittleEndian.PutUint64(dst[n:], uint64(ttlNanos))
	n += 8
	binary.LittleEndian.PutUint64(dst[n:], version)
	n += 8
	copy(dst[n:], key)
	n += len(key)
	copy(dst[n:], value)
	n += len(value)

	crc := crc32.Checksum(dst[:n], crcTable)
	binary.LittleEndian.PutUint32(dst[n:], crc)
	n += crcSize
	return n
}

// decodeFrame decodes one frame starting at buf[0]. It returns the frame
// and the number of bytes consumed, or an error if buf is too short or the
// checksum doesn't match (a torn or corrupted write).
func decodeFrame(buf []byte) (frame, int, error) {
	if len(buf) < frameFixedSize {
		return frame{}, 0, fmt.Errorf("pool: truncated frame header")
	}

	n := 0
	frameType := buf[n]
	n++
	keyLen := int(binary.LittleEndian.Uint16(buf[n:]))
	n += 2
	valueLen := int(binary.LittleEndian.Uint32(buf[n:]))
	n += 4
	created := int64(binary.LittleEndian.Uint64(buf[n:]))
	n += 8
	ttl := int64(binary.LittleEndian.Uint64(buf[n:]))
	n += 8
	version := binary.LittleEndian.Uint64(buf[n:])
	n += 8

	total := frameFixedSize + keyLen + valueLen + crcSize
	if len(buf) < total {
		return frame{}, 0, fmt.Errorf("pool: truncated frame body")
	}

	key := string(buf[n : n+keyLen])
	n += keyLen
	value := buf[n : n+valueLen : n+valueLen]
	n += valueLen

	wantCRC := binary.LittleEndian.Uint32(buf[n:])
	gotCRC := crc32.Checksum(buf[:n], crcTable)
	if wantCRC != gotCRC {
		return frame{}, 0, fmt.Errorf("pool: checksum mismatch at offset, frame corrupt")
	}

	return frame{
		frameType:    frameType,
		key:          key,
		value:        value,
		createdNanos: created,
		ttlNanos:     ttl,
		version:      version,
		totalSize:    total,
	}, total, nil
}
