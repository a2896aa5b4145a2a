package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"lodge_finder/internal/adapters/observability"
	"lodge_finder/internal/domain"
)

var ErrNoLocation = errors.New("geoip: no location for address")

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// Locator resolves client IPs against a MaxMind GeoIP2/GeoLite2 City database.
type Locator struct {
	db    cityReader
	close func() error
}

func Open(path string) (*Locator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip db %s: %w", path, err)
	}
	return &Locator{db: r, close: r.Close}, nil
}

// NewWithReader wraps an already opened reader.
func NewWithReader(r cityReader) *Locator { return &Locator{db: r, close: func() error { return nil }} }

func (l *Locator) Close() error { return l.close() }

func (l *Locator) Locate(ctx context.Context, ip string) (domain.Coords, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		observability.ObserveGeo("miss")
		return domain.Coords{}, fmt.Errorf("%w: %q", ErrNoLocation, ip)
	}
	// private ranges never appear in the database
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() {
		observability.ObserveGeo("miss")
		return domain.Coords{}, ErrNoLocation
	}
	rec, err := l.db.City(addr)
	if err != nil {
		observability.ObserveGeo("error")
		return domain.Coords{}, err
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		observability.ObserveGeo("miss")
		return domain.Coords{}, ErrNoLocation
	}
	observability.ObserveGeo("found")
	return domain.Coords{Lat: rec.Location.Latitude, Lon: rec.Location.Longitude}, nil
}
