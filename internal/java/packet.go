package java

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// Packet ids of the status state.
const (
	packetHandshake     = 0x00
	packetStatusRequest = 0x00
	packetStatusReply   = 0x00
	packetPing          = 0x01
	packetPong          = 0x01
)

// nextStateStatus is the handshake next state that selects the status exchange.
const nextStateStatus = 1

// maxPacketLen is the largest packet length a three byte VarInt can carry.
const maxPacketLen = 1<<21 - 1

// packet is an uncompressed packet: id followed by its payload.
type packet struct {
	data []byte
	id   int32
}

// builder assembles packet payloads.
type builder struct {
	buf []byte
}

func (b *builder) varInt(v int32) *builder {
	b.buf = AppendVarInt(b.buf, v)
	return b
}

func (b *builder) string(s string) *builder {
	b.buf = AppendVarInt(b.buf, int32(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

func (b *builder) uint16(v uint16) *builder {
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
	return b
}

func (b *builder) int64(v int64) *builder {
	b.buf = binary.BigEndian.AppendUint64(b.buf, uint64(v))
	return b
}

// frame returns id and payload prefixed with the packet length.
func frame(id int32, payload []byte) []byte {
	size := VarIntSize(id) + len(payload)
	out := make([]byte, 0, MaxVarIntLen+size)
	out = AppendVarInt(out, int32(size))
	out = AppendVarInt(out, id)
	return append(out, payload...)
}

// readPacket reads one length prefixed packet.
func readPacket(r *bufio.Reader) (packet, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return packet{}, fmt.Errorf("read packet length: %w", err)
	}
	if length < 1 || length > maxPacketLen {
		return packet{}, fmt.Errorf("invalid packet length %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			err = ErrTruncated
		}
		return packet{}, fmt.Errorf("read packet body: %w", err)
	}

	id, n, err := DecodeVarInt(body)
	if err != nil {
		return packet{}, fmt.Errorf("read packet id: %w", err)
	}

	return packet{id: id, data: body[n:]}, nil
}

// readString reads a VarInt prefixed UTF-8 string from the packet payload.
func (p packet) readString() (string, error) {
	n, off, err := DecodeVarInt(p.data)
	if err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	if n < 0 || int(n) > len(p.data)-off {
		return "", fmt.Errorf("string length %d exceeds payload: %w", n, ErrTruncated)
	}

	s := p.data[off : off+int(n)]
	if !utf8.Valid(s) {
		return "", fmt.Errorf("string is not valid UTF-8")
	}
	return string(s), nil
}

// readInt64 reads a big endian int64 from the packet payload.
func (p packet) readInt64() (int64, error) {
	if len(p.data) < 8 {
		return 0, fmt.Errorf("read long: %w", ErrTruncated)
	}
	return int64(binary.BigEndian.Uint64(p.data[:8])), nil
}
