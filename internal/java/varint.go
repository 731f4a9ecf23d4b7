package java

import (
	"errors"
	"io"
)

// MaxVarIntLen is the longest encoding of a 32-bit VarInt.
const MaxVarIntLen = 5

var (
	// ErrVarIntTooBig is returned when a VarInt continues past five bytes.
	ErrVarIntTooBig = errors.New("varint is too big")

	// ErrTruncated is returned when input ends inside a value.
	ErrTruncated = errors.New("truncated data")
)

// AppendVarInt appends the VarInt encoding of v to buf.
// Negative values are encoded through their two's complement and always take five bytes.
func AppendVarInt(buf []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

// VarIntSize returns the number of bytes AppendVarInt writes for v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// ReadVarInt reads one VarInt from r.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var v uint32
	for i := 0; i < MaxVarIntLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrTruncated
			}
			return 0, err
		}

		v |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, ErrVarIntTooBig
}

// DecodeVarInt decodes a VarInt from the start of b and returns it with the number of bytes consumed.
func DecodeVarInt(b []byte) (int32, int, error) {
	var v uint32
	for i := 0; i < MaxVarIntLen; i++ {
		if i >= len(b) {
			return 0, 0, ErrTruncated
		}

		v |= uint32(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return int32(v), i + 1, nil
		}
	}
	return 0, 0, ErrVarIntTooBig
}
