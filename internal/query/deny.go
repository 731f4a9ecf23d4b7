package query

import (
	"net"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/craftping/internal/resolver"
)

// DenyList is a set of hashed hostnames and IP literals that must never be queried.
type DenyList map[uint64]struct{}

// NewDenyList builds a deny list, hostnames are matched case-insensitively.
func NewDenyList(hosts []string) DenyList {
	d := make(DenyList, len(hosts))
	for _, host := range hosts {
		if host = strings.TrimSpace(host); host != "" {
			d[hostHash(host)] = struct{}{}
		}
	}
	return d
}

// Denied reports whether host, a hostname or IP literal, is on the list.
func (d DenyList) Denied(host string) bool {
	if len(d) == 0 {
		return false
	}
	_, ok := d[hostHash(host)]
	return ok
}

// Address reports whether a resolved address is denied by its host,
// which is the SRV target when SRV was followed, or by its IP.
func (d DenyList) Address(addr resolver.Address) bool {
	if d.Denied(addr.Host) {
		return true
	}
	return addr.IP != nil && d.Denied(addr.IP.String())
}

func hostHash(host string) uint64 {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if ip := net.ParseIP(host); ip != nil {
		host = ip.String()
	}
	return xxhash.Sum64String(host)
}
