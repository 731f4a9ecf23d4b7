package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/mcerr"
	"github.com/woozymasta/craftping/internal/models"
)

// srvService is the SRV service label used by Java edition clients.
const srvService = "_minecraft._tcp."

// Options configures a Resolver.
type Options struct {
	// Nameservers used for SRV lookups ("ip" or "ip:port").
	// When empty, the servers from /etc/resolv.conf are used.
	Nameservers []string

	// Timeout bounds a single SRV exchange, the query context may cut it shorter.
	Timeout time.Duration

	// SRV enables SRV lookups for Java edition hosts.
	SRV bool
}

// Resolver turns user supplied addresses into dialable endpoints.
type Resolver struct {
	// LookupIPAddr resolves hostnames, defaults to the system resolver.
	LookupIPAddr func(ctx context.Context, host string) ([]net.IPAddr, error)

	client      *dns.Client
	nameservers []string
	srv         bool
}

// New creates a resolver. Nameservers missing from the options are read from
// /etc/resolv.conf; if that fails, SRV lookups go through the system resolver.
func New(opts Options) *Resolver {
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}

	servers := make([]string, 0, len(opts.Nameservers))
	for _, s := range opts.Nameservers {
		servers = append(servers, normalizeServer(s))
	}
	if len(servers) == 0 && opts.SRV {
		if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
			for _, s := range cfg.Servers {
				servers = append(servers, net.JoinHostPort(s, cfg.Port))
			}
		} else {
			log.Debug().Err(err).Msg("Cannot read resolv.conf, using system SRV lookup")
		}
	}

	return &Resolver{
		LookupIPAddr: net.DefaultResolver.LookupIPAddr,
		client:       &dns.Client{Net: "udp", Timeout: opts.Timeout},
		nameservers:  servers,
		srv:          opts.SRV,
	}
}

// Resolve parses "host[:port]" and resolves it for the given edition.
func (r *Resolver) Resolve(ctx context.Context, address string, edition models.Edition) (Address, error) {
	addr, err := Parse(address, edition)
	if err != nil {
		return Address{}, err
	}

	return r.resolve(ctx, addr)
}

// ResolveHostPort resolves a host with a separately supplied port.
// A zero port means unspecified: a port embedded in host or the edition default applies.
func (r *Resolver) ResolveHostPort(ctx context.Context, host string, port int, edition models.Edition) (Address, error) {
	addr, err := Parse(host, edition)
	if err != nil {
		return Address{}, err
	}

	if port != 0 {
		if port < 1 || port > 65535 {
			return Address{}, mcerr.InvalidInput("invalid port %d, expected 1-65535", port)
		}
		addr.Port = uint16(port)
		addr.PortSet = true
	}

	return r.resolve(ctx, addr)
}

func (r *Resolver) resolve(ctx context.Context, addr Address) (Address, error) {
	if ip := net.ParseIP(addr.Host); ip != nil {
		addr.IP = ip
		return addr, nil
	}

	if r.srv && addr.Edition == models.Java && (!addr.PortSet || addr.Port == models.DefaultJavaPort) {
		if target, port, ok := r.lookupSRV(ctx, addr.Host); ok {
			log.Debug().
				Str("host", addr.Host).
				Str("target", target).
				Uint16("port", port).
				Msg("SRV record found")

			addr.Host = target
			addr.Port = port
			addr.SRV = true

			if ip := net.ParseIP(target); ip != nil {
				addr.IP = ip
				return addr, nil
			}
		}
	}

	ips, err := r.LookupIPAddr(ctx, addr.Host)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Address{}, fmt.Errorf("resolve %s: %w", addr.Host, ctxErr)
		}
		return Address{}, mcerr.DNSFailure(addr.Host, err)
	}
	if len(ips) == 0 {
		return Address{}, mcerr.DNSFailure(addr.Host, errors.New("no addresses found"))
	}

	addr.IP = pickIP(ips)
	return addr, nil
}

// lookupSRV returns the preferred _minecraft._tcp target of host.
func (r *Resolver) lookupSRV(ctx context.Context, host string) (string, uint16, bool) {
	name := srvService + dns.Fqdn(host)

	var records []*dns.SRV
	if len(r.nameservers) == 0 {
		_, addrs, err := net.DefaultResolver.LookupSRV(ctx, "", "", name)
		if err != nil {
			log.Trace().Err(err).Str("name", name).Msg("SRV lookup failed")
			return "", 0, false
		}
		for _, a := range addrs {
			records = append(records, &dns.SRV{Target: a.Target, Port: a.Port, Priority: a.Priority, Weight: a.Weight})
		}
	} else {
		records = r.exchangeSRV(ctx, name)
	}

	if len(records) == 0 {
		return "", 0, false
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority < records[j].Priority
		}
		return records[i].Weight > records[j].Weight
	})

	best := records[0]
	target := dns.Fqdn(best.Target)
	if target == "." || best.Port == 0 {
		return "", 0, false
	}

	return target[:len(target)-1], best.Port, true
}

func (r *Resolver) exchangeSRV(ctx context.Context, name string) []*dns.SRV {
	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypeSRV)
	msg.RecursionDesired = true

	for _, server := range r.nameservers {
		if ctx.Err() != nil {
			return nil
		}

		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			log.Trace().Err(err).Str("server", server).Str("name", name).Msg("SRV exchange failed")
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			return nil
		}

		var records []*dns.SRV
		for _, rr := range resp.Answer {
			if srv, ok := rr.(*dns.SRV); ok {
				records = append(records, srv)
			}
		}
		return records
	}

	return nil
}

func pickIP(ips []net.IPAddr) net.IP {
	for _, ip := range ips {
		if ip.IP.To4() != nil {
			return ip.IP
		}
	}
	return ips[0].IP
}

func normalizeServer(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, strconv.Itoa(53))
}
