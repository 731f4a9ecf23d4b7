// Package resolver parses server addresses and resolves them to dialable endpoints,
// following Minecraft SRV records for Java edition servers.
package resolver

import (
	"net"
	"strconv"
	"strings"

	"github.com/woozymasta/craftping/internal/mcerr"
	"github.com/woozymasta/craftping/internal/models"
)

// Address is a parsed and resolved server endpoint.
type Address struct {
	// IP is the resolved address used for dialing, nil until resolved.
	IP net.IP

	// Host is the hostname or IP literal, after SRV redirection.
	Host string

	// Edition selects the status protocol.
	Edition models.Edition

	// Port is the status port.
	Port uint16

	// PortSet is true when the port was given explicitly.
	PortSet bool

	// SRV is true when host and port were taken from an SRV record.
	SRV bool
}

// Dial returns the "ip:port" string used to open the connection.
func (a Address) Dial() string {
	host := a.Host
	if a.IP != nil {
		host = a.IP.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(int(a.Port)))
}

// String returns "host:port".
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// Parse splits a "host[:port]" string and applies the default port of the edition.
// Bracketed IPv6 literals with a port and bare IPv6 literals are accepted.
func Parse(address string, edition models.Edition) (Address, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Address{}, mcerr.InvalidInput("missing server address")
	}

	host, portStr := address, ""
	switch {
	case strings.HasPrefix(address, "["):
		end := strings.Index(address, "]")
		if end < 0 {
			return Address{}, mcerr.InvalidInput("invalid address %q", address)
		}
		host = address[1:end]
		rest := address[end+1:]
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return Address{}, mcerr.InvalidInput("invalid address %q", address)
			}
			portStr = rest[1:]
			if portStr == "" {
				return Address{}, mcerr.InvalidInput("invalid port in %q", address)
			}
		}
	case strings.Count(address, ":") == 1:
		i := strings.LastIndex(address, ":")
		host, portStr = address[:i], address[i+1:]
		if portStr == "" {
			return Address{}, mcerr.InvalidInput("invalid port in %q", address)
		}
	}

	host = strings.TrimSuffix(strings.TrimSpace(host), ".")
	if host == "" {
		return Address{}, mcerr.InvalidInput("missing host in %q", address)
	}

	addr := Address{Host: host, Edition: edition, Port: edition.DefaultPort()}
	if portStr != "" {
		port, err := ParsePort(portStr)
		if err != nil {
			return Address{}, err
		}
		addr.Port = port
		addr.PortSet = true
	}

	return addr, nil
}

// ParsePort validates a decimal port in [1,65535].
func ParsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return 0, mcerr.InvalidInput("invalid port %q, expected 1-65535", s)
	}
	return uint16(n), nil
}
