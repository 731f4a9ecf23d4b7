// Package java implements the Server List Ping status exchange of Java edition servers.
package java

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/mcerr"
	"github.com/woozymasta/craftping/internal/resolver"
)

// PingProtocolVersion is sent in the handshake when the server version is unknown.
const PingProtocolVersion int32 = -1

// ErrUnexpectedPacket is returned when the server answers with a packet that does not belong to the exchange.
var ErrUnexpectedPacket = errors.New("unexpected packet")

// Client queries Java edition servers.
type Client struct {
	// Dialer opens the stream connection.
	Dialer *net.Dialer

	// ProtocolVersion is announced in the handshake.
	ProtocolVersion int32
}

// NewClient returns a client announcing PingProtocolVersion.
func NewClient() *Client {
	return &Client{
		Dialer:          &net.Dialer{},
		ProtocolVersion: PingProtocolVersion,
	}
}

// Query performs handshake, status request and ping on a fresh connection.
// The connection is closed before returning and as soon as ctx is done.
// Errors are *mcerr.Error of kind timeout, connection refused or protocol error.
func (c *Client) Query(ctx context.Context, addr resolver.Address) (*Status, error) {
	budget := remaining(ctx)

	conn, err := c.Dialer.DialContext(ctx, "tcp", addr.Dial())
	if err != nil {
		return nil, mcerr.Network(ctx, err, addr.Port, budget)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	status, err := c.exchange(ctx, conn, addr)
	if err != nil {
		return nil, mcerr.Network(ctx, err, addr.Port, budget)
	}

	return status, nil
}

func (c *Client) exchange(ctx context.Context, conn net.Conn, addr resolver.Address) (*Status, error) {
	handshake := (&builder{}).
		varInt(c.ProtocolVersion).
		string(addr.Host).
		uint16(addr.Port).
		varInt(nextStateStatus)

	out := frame(packetHandshake, handshake.buf)
	out = append(out, frame(packetStatusRequest, nil)...)

	start := time.Now()
	if _, err := conn.Write(out); err != nil {
		return nil, fmt.Errorf("write status request: %w", err)
	}

	r := bufio.NewReader(conn)
	p, err := readPacket(r)
	if err != nil {
		return nil, err
	}
	statusRTT := time.Since(start)

	if p.id != packetStatusReply {
		return nil, mcerr.Protocol(fmt.Errorf("%w 0x%02x in status state", ErrUnexpectedPacket, p.id))
	}

	body, err := p.readString()
	if err != nil {
		return nil, mcerr.Protocol(err)
	}

	var status Status
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		return nil, mcerr.Protocol(fmt.Errorf("decode status json: %w", err))
	}

	latency, err := ping(conn, r)
	switch {
	case err == nil:
		status.Latency = latency
	case ctx.Err() != nil || mcerr.IsTimeout(err):
		return nil, err
	default:
		log.Debug().
			Err(err).
			Str("address", addr.String()).
			Msg("Ping failed after status, using status round-trip as latency")

		status.Latency = statusRTT
		status.PingFallback = true
	}

	return &status, nil
}

// ping sends a random nonce and measures the time until the matching pong arrives.
func ping(conn net.Conn, r *bufio.Reader) (time.Duration, error) {
	nonce := rand.Int63()
	payload := (&builder{}).int64(nonce)

	start := time.Now()
	if _, err := conn.Write(frame(packetPing, payload.buf)); err != nil {
		return 0, fmt.Errorf("write ping: %w", err)
	}

	p, err := readPacket(r)
	if err != nil {
		return 0, err
	}
	rtt := time.Since(start)

	if p.id != packetPong {
		return 0, fmt.Errorf("%w 0x%02x instead of pong", ErrUnexpectedPacket, p.id)
	}

	echo, err := p.readInt64()
	if err != nil {
		return 0, err
	}
	if echo != nonce {
		return 0, fmt.Errorf("pong payload %d does not match ping %d", echo, nonce)
	}

	return rtt, nil
}

// remaining returns the time left until the context deadline, rounded to milliseconds.
func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline).Round(time.Millisecond)
}
