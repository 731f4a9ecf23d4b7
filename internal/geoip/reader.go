package geoip

import (
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Provider wraps the GeoIP2 database reader to provide country lookup functionality.
// The reader can be swapped at runtime by Reload; a nil Provider tags nothing.
type Provider struct {
	db   *geoip2.Reader
	path string
	mu   sync.RWMutex
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db, path: path}, nil
}

// Reload reopens the database file and swaps it in, the old reader is closed.
func (p *Provider) Reload() error {
	db, err := geoip2.Open(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	old := p.db
	p.db = db
	p.mu.Unlock()

	if err := old.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing previous GeoIP reader")
	}

	return nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.db.Close()
}

// CountryCode looks up the ISO country code (e.g., "US", "DE") of ip.
// It returns an empty string for private or unknown addresses.
func (p *Provider) CountryCode(ip net.IP) string {
	if p == nil || ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return ""
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	record, err := p.db.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}
