package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Provider wraps the GeoIP2 database reader to provide country lookup functionality.
// A nil Provider answers every lookup with an empty string.
type Provider struct {
	db *geoip2.Reader
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}
	return p.db.Close()
}

// Country looks up the ISO country code (e.g., "US", "DE") for an IP address string.
// Private, loopback and otherwise non-routable addresses have no country.
func (p *Provider) Country(ipStr string) string {
	ip := Routable(ipStr)
	if p == nil || ip == nil {
		return ""
	}

	record, err := p.db.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

// Routable parses ipStr and returns nil when the address cannot appear in a GeoIP database.
func Routable(ipStr string) net.IP {
	ip := net.ParseIP(ipStr)
	if ip == nil ||
		ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsMulticast() {
		return nil
	}

	return ip
}
