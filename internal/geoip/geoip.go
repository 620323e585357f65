// Package geoip resolves the country and city of a viewer for view records.
// A missing database disables lookups instead of failing startup.
package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

type Resolver struct {
	db *maxminddb.Reader
}

type Location struct {
	Country string
	City    string
}

type geoResult struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

func New(dbPath string) (*Resolver, error) {
	if dbPath == "" {
		return &Resolver{}, nil
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip: failed to open database, geolocation disabled", "path", dbPath, "error", err)
		return &Resolver{}, nil
	}
	slog.Info("geoip: loaded database", "path", dbPath)
	return &Resolver{db: db}, nil
}

// Lookup accepts a bare IP or a host:port remote address.
func (r *Resolver) Lookup(addr string) Location {
	if r == nil || r.db == nil || addr == "" {
		return Location{}
	}
	ip := parseIP(addr)
	if !routable(ip) {
		return Location{}
	}
	var result geoResult
	if err := r.db.Lookup(ip, &result); err != nil {
		slog.Debug("geoip: lookup failed", "ip", ip.String(), "error", err)
		return Location{}
	}
	return Location{Country: result.Country.ISOCode, City: cityName(result.City.Names)}
}

// cityName prefers the English name and otherwise takes any localized one.
func cityName(names map[string]string) string {
	if name, ok := names["en"]; ok {
		return name
	}
	for _, name := range names {
		return name
	}
	return ""
}

// routable reports whether ip can appear in a public geo database. Local proxies
// and loopback addresses would only ever miss.
func routable(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() && !ip.IsLinkLocalUnicast()
}

func (r *Resolver) Enabled() bool {
	return r != nil && r.db != nil
}

func (r *Resolver) Close() error {
	if r != nil && r.db != nil {
		return r.db.Close()
	}
	return nil
}

func parseIP(addr string) net.IP {
	if ip := net.ParseIP(addr); ip != nil {
		return ip
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}
