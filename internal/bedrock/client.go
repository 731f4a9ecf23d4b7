// Package bedrock implements the RakNet unconnected ping used to query Bedrock edition servers.
package bedrock

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/mcerr"
	"github.com/woozymasta/craftping/internal/resolver"
)

// maxDatagram is large enough for any pong, RakNet caps MTU well below it.
const maxDatagram = 1500

// Client queries Bedrock edition servers.
type Client struct {
	// Dialer opens the datagram socket.
	Dialer *net.Dialer

	// GUID identifies this client in pings, random when zero.
	GUID int64
}

// NewClient returns a client with a random GUID.
func NewClient() *Client {
	return &Client{
		Dialer: &net.Dialer{},
		GUID:   rand.Int63(),
	}
}

// Query sends one unconnected ping and waits for one pong until ctx is done.
// There is no retransmission: a lost datagram ends as a timeout.
// Errors are *mcerr.Error of kind timeout, connection refused or protocol error.
func (c *Client) Query(ctx context.Context, addr resolver.Address) (*Status, error) {
	budget := remaining(ctx)

	conn, err := c.Dialer.DialContext(ctx, "udp", addr.Dial())
	if err != nil {
		return nil, mcerr.Network(ctx, err, addr.Port, budget)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	start := time.Now()
	if _, err := conn.Write(appendPing(nil, start, c.GUID)); err != nil {
		return nil, mcerr.Network(ctx, fmt.Errorf("write ping: %w", err), addr.Port, budget)
	}

	buf := make([]byte, maxDatagram)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, mcerr.Network(ctx, fmt.Errorf("read pong: %w", err), addr.Port, budget)
	}
	rtt := time.Since(start)

	status, err := ParsePong(buf[:n])
	if err != nil {
		log.Trace().
			Err(err).
			Str("address", addr.String()).
			Int("bytes", n).
			Msg("Malformed pong")

		return nil, mcerr.Protocol(err)
	}
	status.Latency = rtt

	return status, nil
}

// remaining returns the time left until the context deadline, rounded to milliseconds.
func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline).Round(time.Millisecond)
}
