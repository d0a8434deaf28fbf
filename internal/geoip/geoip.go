// Package geoip resolves server addresses to country codes from a local
// MaxMind database. The database is optional; without one every lookup
// reports unavailable and callers fall back to other sources.
package geoip

import (
	"context"
	"errors"
	"net/netip"

	"github.com/oschwald/maxminddb-golang/v2"
)

var (
	ErrUnavailable = errors.New("no geoip database configured")
	ErrLookup      = errors.New("error trying to lookup address")
)

type record struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Resolver answers batched country lookups for the refresh pass.
type Resolver struct {
	db *maxminddb.Reader
}

// New opens the database at path. An empty path yields a resolver whose
// lookups all fail with ErrUnavailable, which is a supported mode.
func New(path string) (*Resolver, error) {
	if path == "" {
		return &Resolver{}, nil
	}

	reader, errOpen := maxminddb.Open(path)
	if errOpen != nil {
		return nil, errors.Join(errOpen, ErrLookup)
	}

	return &Resolver{db: reader}, nil
}

func (r *Resolver) Close() error {
	if r.db == nil {
		return nil
	}

	return r.db.Close()
}

// Lookup resolves one address to an ISO country code.
func (r *Resolver) Lookup(addr netip.Addr) (string, error) {
	if r.db == nil {
		return "", ErrUnavailable
	}

	var rec record
	if err := r.db.Lookup(addr).Decode(&rec); err != nil {
		return "", errors.Join(err, ErrLookup)
	}

	return rec.Country.ISOCode, nil
}

// Resolve maps each address to a country code, dropping addresses that
// cannot be resolved. It satisfies the browser's CountryResolver.
func (r *Resolver) Resolve(ctx context.Context, addrs []netip.Addr) map[netip.Addr]string {
	resolved := map[netip.Addr]string{}
	for _, addr := range addrs {
		if ctx.Err() != nil {
			return resolved
		}

		country, err := r.Lookup(addr)
		if err != nil || country == "" {
			continue
		}
		resolved[addr] = country
	}

	return resolved
}
