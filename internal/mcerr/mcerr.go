// Package mcerr classifies query failures into the error kinds exposed in query results.
package mcerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Kind is the category of a failed query.
type Kind string

// Error kinds reported in QueryResult.ErrorKind.
const (
	KindDNSFailure        Kind = "DNS_FAILURE"
	KindConnectionRefused Kind = "CONNECTION_REFUSED"
	KindTimeout           Kind = "TIMEOUT"
	KindProtocolError     Kind = "PROTOCOL_ERROR"
	KindInvalidInput      Kind = "INVALID_INPUT"
)

// Error is a classified query failure carrying a user facing message.
type Error struct {
	// Err is the underlying cause, may be nil.
	Err error

	// Kind is the failure category.
	Kind Kind

	// Msg is the human readable message shown to users.
	Msg string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error with the given kind and message.
func New(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// InvalidInput reports a bad host, port or server type.
func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, nil, format, args...)
}

// Protocol reports a malformed or unexpected response.
func Protocol(err error) *Error {
	return New(KindProtocolError, err, "malformed server response")
}

// DNSFailure reports an unresolvable hostname.
func DNSFailure(host string, err error) *Error {
	return New(KindDNSFailure, err, "cannot resolve hostname %q, please check the spelling", host)
}

// Refused reports a reachable host refusing the port.
func Refused(port uint16, err error) *Error {
	return New(KindConnectionRefused, err,
		"connection refused, check that the address and port (%d) are correct", port)
}

// Unreachable reports a host or network that cannot be reached, or a connection reset by the peer.
func Unreachable(port uint16, err error) *Error {
	return New(KindConnectionRefused, err,
		"server unreachable on port %d, the server is likely offline", port)
}

// Timeout reports an exhausted time budget.
func Timeout(budget time.Duration, err error) *Error {
	return New(KindTimeout, err,
		"query timed out (%s), the server is likely offline or the network is congested", budget)
}

// KindOf returns the kind of a classified error, or an empty kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Network classifies a dial, read or write failure of a query connection.
// Already classified errors pass through unchanged; anything unknown is
// reported as a protocol error.
func Network(ctx context.Context, err error, port uint16, budget time.Duration) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if ctx.Err() != nil || IsTimeout(err) {
		return Timeout(budget, err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return Refused(port, err)
	}

	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.ECONNRESET) {
		return Unreachable(port, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DNSFailure(dnsErr.Name, err)
	}

	return Protocol(err)
}

// IsTimeout reports whether err is a deadline or timeout error.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
