package bedrock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RakNet offline message ids.
const (
	idUnconnectedPing = 0x01
	idUnconnectedPong = 0x1c
)

// offlineMessageDataID is the magic that marks RakNet offline messages.
var offlineMessageDataID = [16]byte{
	0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78,
}

// minFields is edition through max players.
const minFields = 6

// pongHeaderLen is id, time, server GUID, magic and string length.
const pongHeaderLen = 1 + 8 + 8 + 16 + 2

var (
	// ErrBadPong is returned for a datagram that is not an unconnected pong.
	ErrBadPong = errors.New("not an unconnected pong")

	// ErrFewFields is returned when the pong carries fewer than six fields.
	ErrFewFields = errors.New("too few status fields")
)

// Status is the decoded unconnected pong of a Bedrock edition server.
type Status struct {
	Edition       string
	MOTD          string
	SubMOTD       string
	Version       string
	ServerID      string
	GameMode      string
	Latency       time.Duration
	Protocol      int
	PlayersOnline int
	PlayersMax    int
	GameModeID    int
	PortV4        int
	PortV6        int
	ServerGUID    int64
}

// appendPing appends an unconnected ping datagram to buf.
func appendPing(buf []byte, sent time.Time, clientGUID int64) []byte {
	buf = append(buf, idUnconnectedPing)
	buf = binary.BigEndian.AppendUint64(buf, uint64(sent.UnixMilli()))
	buf = append(buf, offlineMessageDataID[:]...)
	return binary.BigEndian.AppendUint64(buf, uint64(clientGUID))
}

// ParsePong decodes an unconnected pong datagram.
func ParsePong(b []byte) (*Status, error) {
	if len(b) < pongHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadPong, len(b))
	}
	if b[0] != idUnconnectedPong {
		return nil, fmt.Errorf("%w: id 0x%02x", ErrBadPong, b[0])
	}
	if !bytes.Equal(b[17:33], offlineMessageDataID[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrBadPong)
	}

	size := int(binary.BigEndian.Uint16(b[33:35]))
	if size > len(b)-pongHeaderLen {
		return nil, fmt.Errorf("%w: length %d exceeds datagram", ErrBadPong, size)
	}

	status, err := ParseFields(string(b[pongHeaderLen : pongHeaderLen+size]))
	if err != nil {
		return nil, err
	}
	status.ServerGUID = int64(binary.BigEndian.Uint64(b[9:17]))

	return status, nil
}

// ParseFields splits the semicolon separated status string:
// edition;motd;protocol;version;online;max;server id;sub motd;game mode;game mode id;port v4;port v6.
// Only the first six fields are required.
func ParseFields(s string) (*Status, error) {
	fields := strings.Split(s, ";")
	if len(fields) < minFields {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrFewFields, len(fields), minFields)
	}

	online, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil {
		return nil, fmt.Errorf("players online %q: %w", fields[4], err)
	}
	maxPlayers, err := strconv.Atoi(strings.TrimSpace(fields[5]))
	if err != nil {
		return nil, fmt.Errorf("players max %q: %w", fields[5], err)
	}

	status := &Status{
		Edition:       fields[0],
		MOTD:          fields[1],
		Protocol:      atoi(fields[2]),
		Version:       fields[3],
		PlayersOnline: online,
		PlayersMax:    maxPlayers,
	}

	optional := []*string{&status.ServerID, &status.SubMOTD, &status.GameMode}
	for i, dst := range optional {
		if len(fields) > minFields+i {
			*dst = fields[minFields+i]
		}
	}
	if len(fields) > 9 {
		status.GameModeID = atoi(fields[9])
	}
	if len(fields) > 10 {
		status.PortV4 = atoi(fields[10])
	}
	if len(fields) > 11 {
		status.PortV6 = atoi(fields[11])
	}

	return status, nil
}

// atoi parses optional numeric fields, zero when malformed.
func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
