// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package geoip

import (
	"log/slog"
	"net"
	"net/netip"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oschwald/geoip2-golang"
)

const (
	defaultCacheSize = 65536
	Unknown          = "UNKNOWN"
)

type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

// Lookup maps exported prefixes to ISO country codes with an LRU cache in
// front of a MaxMind GeoLite2-Country database. A nil *Lookup answers Unknown.
type Lookup struct {
	mu    sync.RWMutex
	db    countryReader
	cache *lru.Cache[netip.Addr, string]
}

// NewWithCacheSize opens the database at path. If cacheSize <= 0,
// defaultCacheSize is used.
func NewWithCacheSize(path string, cacheSize int) (*Lookup, error) {
	slog.Debug("opening GeoIP database", "path", path, "cache_size", cacheSize)
	db, err := geoip2.Open(path)
	if err != nil {
		slog.Error("GeoIP database open failed", "path", path, "err", err)
		return nil, err
	}
	l, err := newLookup(db, cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("GeoIP database opened", "path", path)
	return l, nil
}

func newLookup(db countryReader, cacheSize int) (*Lookup, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[netip.Addr, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Lookup{db: db, cache: cache}, nil
}

func (l *Lookup) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	if err != nil {
		slog.Error("GeoIP database close failed", "err", err)
		return err
	}
	slog.Debug("GeoIP database closed")
	return nil
}

// Country returns the country of the network address of p. Private and
// unlisted networks are Unknown.
func (l *Lookup) Country(p netip.Prefix) string {
	if l == nil || !p.IsValid() {
		return Unknown
	}
	a := p.Masked().Addr()
	if cc, ok := l.cache.Get(a); ok {
		return cc
	}
	l.mu.RLock()
	db := l.db
	l.mu.RUnlock()
	if db == nil {
		return Unknown
	}
	cc := Unknown
	record, err := db.Country(net.IP(a.AsSlice()))
	if err != nil {
		slog.Warn("GeoIP country lookup failed", "prefix", p, "err", err)
	} else if record.Country.IsoCode != "" {
		cc = record.Country.IsoCode
	}
	l.cache.Add(a, cc)
	return cc
}
