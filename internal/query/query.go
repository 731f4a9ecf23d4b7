// Package query runs a complete status query: input validation, address resolution,
// the edition specific exchange and normalization, all bounded by one deadline.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/bedrock"
	"github.com/woozymasta/craftping/internal/java"
	"github.com/woozymasta/craftping/internal/mcerr"
	"github.com/woozymasta/craftping/internal/models"
	"github.com/woozymasta/craftping/internal/normalize"
	"github.com/woozymasta/craftping/internal/resolver"
)

// DefaultTimeout bounds a query when the caller gives no timeout.
const DefaultTimeout = 5 * time.Second

// AddressResolver turns a host and optional port into a dialable address.
type AddressResolver interface {
	ResolveHostPort(ctx context.Context, host string, port int, edition models.Edition) (resolver.Address, error)
}

// JavaClient performs the Server List Ping exchange.
type JavaClient interface {
	Query(ctx context.Context, addr resolver.Address) (*java.Status, error)
}

// BedrockClient performs the RakNet unconnected ping.
type BedrockClient interface {
	Query(ctx context.Context, addr resolver.Address) (*bedrock.Status, error)
}

// Options configures a Service. Nil collaborators get their defaults.
type Options struct {
	Resolver AddressResolver
	Java     JavaClient
	Bedrock  BedrockClient

	// Nameservers used for SRV lookups by the default resolver.
	Nameservers []string

	// Timeout applies when a query carries none, DefaultTimeout when zero.
	Timeout time.Duration

	// MaxTimeout caps caller supplied timeouts, no cap when zero.
	MaxTimeout time.Duration

	// Deny rejects resolved addresses with INVALID_INPUT before any packet is sent.
	Deny func(addr resolver.Address) bool

	// SRV enables Java SRV lookups in the default resolver.
	SRV bool
}

// Service queries Minecraft servers. It holds no per-query state and is safe for concurrent use.
type Service struct {
	resolver   AddressResolver
	java       JavaClient
	bedrock    BedrockClient
	deny       func(addr resolver.Address) bool
	timeout    time.Duration
	maxTimeout time.Duration
}

// New creates a query service.
func New(opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Resolver == nil {
		opts.Resolver = resolver.New(resolver.Options{SRV: opts.SRV, Nameservers: opts.Nameservers})
	}
	if opts.Java == nil {
		opts.Java = java.NewClient()
	}
	if opts.Bedrock == nil {
		opts.Bedrock = bedrock.NewClient()
	}

	return &Service{
		resolver:   opts.Resolver,
		java:       opts.Java,
		bedrock:    opts.Bedrock,
		deny:       opts.Deny,
		timeout:    opts.Timeout,
		maxTimeout: opts.MaxTimeout,
	}
}

// Query runs a query described by an API request.
func (s *Service) Query(ctx context.Context, req models.QueryRequest) models.QueryResult {
	return s.QueryServer(ctx, req.Host, req.Port, req.Type, time.Duration(req.TimeoutMs)*time.Millisecond)
}

// QueryServer queries host, which may carry a ":port" suffix when port is zero.
// A zero timeout selects the service default. The result is always populated:
// failures end in status "timeout" or "error" with errorKind and errorMessage set.
func (s *Service) QueryServer(ctx context.Context, host string, port int, edition string, timeout time.Duration) (res models.QueryResult) {
	start := time.Now()
	host = strings.TrimSpace(host)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("host", host).
				Interface("panic", r).
				Msg("Query panicked")

			res = failure(host, port, "", mcerr.Protocol(fmt.Errorf("panic: %v", r)))
		}

		log.Debug().
			Str("host", host).
			Int("port", res.Port).
			Str("type", string(res.Type)).
			Str("status", string(res.Status)).
			Str("error_kind", string(res.ErrorKind)).
			Dur("duration", time.Since(start)).
			Msg("Query finished")
	}()

	ed, ok := models.ParseEdition(edition)
	if !ok {
		return failure(host, port, "", mcerr.InvalidInput("invalid server type %q, expected java or bedrock", edition))
	}

	switch {
	case timeout < 0:
		return failure(host, port, ed, mcerr.InvalidInput("invalid timeout %s", timeout))
	case timeout == 0:
		timeout = s.timeout
	case s.maxTimeout > 0 && timeout > s.maxTimeout:
		timeout = s.maxTimeout
	}

	requested, err := resolver.Parse(host, ed)
	if err != nil {
		return failure(host, port, ed, err)
	}
	if port < 0 || port > 65535 {
		return failure(requested.Host, port, ed, mcerr.InvalidInput("invalid port %d, expected 1-65535", port))
	}
	if port == 0 {
		port = int(requested.Port)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr, err := s.resolver.ResolveHostPort(ctx, host, port, ed)
	if err != nil {
		return failure(requested.Host, port, ed, classify(ctx, err, uint16(port), timeout))
	}

	log.Trace().
		Str("host", requested.Host).
		Str("address", addr.Dial()).
		Bool("srv", addr.SRV).
		Msg("Address resolved")

	if s.deny != nil && s.deny(addr) {
		return failure(requested.Host, port, ed, mcerr.InvalidInput("querying this host is not allowed"))
	}

	switch ed {
	case models.Bedrock:
		var status *bedrock.Status
		if status, err = s.bedrock.Query(ctx, addr); err == nil {
			res = normalize.Bedrock(status, addr)
		}
	default:
		var status *java.Status
		if status, err = s.java.Query(ctx, addr); err == nil {
			res = normalize.Java(status, addr)
		}
	}
	if err != nil {
		res = failure(requested.Host, int(addr.Port), ed, classify(ctx, err, addr.Port, timeout))
		res.SRV = addr.SRV
		return res
	}

	res.Host = requested.Host
	return res
}

// classify maps any failure onto a kind, timeouts are reported against the whole query budget.
func classify(ctx context.Context, err error, port uint16, budget time.Duration) *mcerr.Error {
	var e *mcerr.Error
	if errors.As(err, &e) {
		if e.Kind == mcerr.KindTimeout {
			return mcerr.Timeout(budget, e.Err)
		}
		return e
	}

	return mcerr.Network(ctx, err, port, budget)
}

func failure(host string, port int, ed models.Edition, err error) models.QueryResult {
	res := models.QueryResult{
		Status:        models.StatusError,
		Host:          host,
		Port:          port,
		Type:          ed,
		PlayersSample: []string{},
		ErrorMessage:  err.Error(),
		ErrorKind:     mcerr.KindProtocolError,
	}

	var e *mcerr.Error
	if errors.As(err, &e) {
		res.ErrorKind = e.Kind
		res.ErrorMessage = e.Msg
	}
	if res.ErrorKind == mcerr.KindTimeout {
		res.Status = models.StatusTimeout
	}

	return res
}
