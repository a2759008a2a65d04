// Package binary is the single bounds-checked codec for instruction payloads.
//
// Every instruction layout in this module encodes and decodes through this
// package, on both the builder and verifier sides, so the two can never drift
// on a field layout. Values are fixed-width little-endian integers, raw
// 32-byte public keys, u32 length-prefixed strings, single-byte option tags,
// and u32 vector counts (borsh-style).
//
// Every read takes a buffer and an offset and returns the decoded value along
// with the offset of the next field. A read never silently defaults: if the
// remaining buffer is shorter than the field requires, ErrTruncatedData is
// returned.
package binary

import (
	"crypto/ed25519"
	"encoding/binary"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var (
	ErrTruncatedData  = errors.New("truncated instruction data")
	ErrMalformedField = errors.New("malformed instruction field")
)

// AppendUint8 appends v to b.
func AppendUint8(b []byte, v uint8) []byte {
	return append(b, v)
}

// AppendUint16 appends v to b in little-endian order.
func AppendUint16(b []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(b, v)
}

// AppendUint32 appends v to b in little-endian order.
func AppendUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

// AppendUint64 appends v to b in little-endian order.
func AppendUint64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

// AppendKey32 appends the raw 32 bytes of a public key to b.
func AppendKey32(b []byte, key ed25519.PublicKey) []byte {
	if len(key) != ed25519.PublicKeySize {
		// A zero key stands in for "system program" placeholders.
		var zero [ed25519.PublicKeySize]byte
		return append(b, zero[:]...)
	}
	return append(b, key...)
}

// AppendString appends a u32 length prefix followed by the UTF-8 bytes of s.
func AppendString(b []byte, s string) []byte {
	b = AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

// AppendOption appends a single-byte option tag: 1 when present, 0 otherwise.
// The caller appends the payload itself when present.
func AppendOption(b []byte, present bool) []byte {
	if present {
		return append(b, 1)
	}
	return append(b, 0)
}

// AppendVecLen appends a u32 element count.
func AppendVecLen(b []byte, n int) []byte {
	return AppendUint32(b, uint32(n))
}

// ReadUint8 reads a byte at offset, returning the value and the next offset.
func ReadUint8(b []byte, offset int) (uint8, int, error) {
	if err := remaining(b, offset, 1); err != nil {
		return 0, 0, err
	}
	return b[offset], offset + 1, nil
}

// ReadUint16 reads a little-endian u16 at offset.
func ReadUint16(b []byte, offset int) (uint16, int, error) {
	if err := remaining(b, offset, 2); err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint16(b[offset:]), offset + 2, nil
}

// ReadUint32 reads a little-endian u32 at offset.
func ReadUint32(b []byte, offset int) (uint32, int, error) {
	if err := remaining(b, offset, 4); err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint32(b[offset:]), offset + 4, nil
}

// ReadUint64 reads a little-endian u64 at offset.
func ReadUint64(b []byte, offset int) (uint64, int, error) {
	if err := remaining(b, offset, 8); err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint64(b[offset:]), offset + 8, nil
}

// ReadKey32 reads a raw 32-byte public key at offset. The returned key is a
// copy; mutating it does not affect the source buffer.
func ReadKey32(b []byte, offset int) (ed25519.PublicKey, int, error) {
	if err := remaining(b, offset, ed25519.PublicKeySize); err != nil {
		return nil, 0, err
	}

	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, b[offset:])
	return key, offset + ed25519.PublicKeySize, nil
}

// ReadString reads a u32 length-prefixed UTF-8 string at offset. The length
// prefix is validated against the remaining buffer before any bytes are
// consumed, and the payload must be valid UTF-8.
func ReadString(b []byte, offset int) (string, int, error) {
	strLen, next, err := ReadUint32(b, offset)
	if err != nil {
		return "", 0, err
	}

	if strLen > uint32(len(b)) {
		return "", 0, errors.Wrapf(ErrTruncatedData, "string length %d exceeds buffer", strLen)
	}
	if err := remaining(b, next, int(strLen)); err != nil {
		return "", 0, err
	}

	raw := b[next : next+int(strLen)]
	if !utf8.Valid(raw) {
		return "", 0, errors.Wrap(ErrMalformedField, "string is not valid utf-8")
	}

	return string(raw), next + int(strLen), nil
}

// ReadOption reads a single-byte option tag at offset. A tag other than 0 or
// 1 is malformed.
func ReadOption(b []byte, offset int) (bool, int, error) {
	tag, next, err := ReadUint8(b, offset)
	if err != nil {
		return false, 0, err
	}

	switch tag {
	case 0:
		return false, next, nil
	case 1:
		return true, next, nil
	default:
		return false, 0, errors.Wrapf(ErrMalformedField, "invalid option tag: %d", tag)
	}
}

// ReadVecLen reads a u32 element count at offset.
func ReadVecLen(b []byte, offset int) (int, int, error) {
	n, next, err := ReadUint32(b, offset)
	if err != nil {
		return 0, 0, err
	}
	return int(n), next, nil
}

func remaining(b []byte, offset, size int) error {
	if offset < 0 || size < 0 {
		return errors.Wrap(ErrMalformedField, "negative offset or size")
	}
	if offset+size > len(b) {
		return errors.Wrapf(ErrTruncatedData, "need %d bytes at offset %d, have %d", size, offset, len(b))
	}
	return nil
}
