// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package geoip

import (
	"errors"
	"net"
	"net/netip"
	"path/filepath"
	"testing"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	codes  map[string]string
	calls  int
	closed bool
}

func (f *fakeDB) Country(ip net.IP) (*geoip2.Country, error) {
	f.calls++
	cc, ok := f.codes[ip.String()]
	if !ok {
		return nil, errors.New("not found")
	}
	var rec geoip2.Country
	rec.Country.IsoCode = cc
	return &rec, nil
}

func (f *fakeDB) Close() error {
	f.closed = true
	return nil
}

func TestCountryCachesByNetwork(t *testing.T) {
	db := &fakeDB{codes: map[string]string{"203.0.113.0": "AU", "2001:db8::": "NL"}}
	l, err := newLookup(db, 16)
	require.NoError(t, err)

	assert.Equal(t, "AU", l.Country(netip.MustParsePrefix("203.0.113.0/24")))
	assert.Equal(t, "AU", l.Country(netip.MustParsePrefix("203.0.113.0/24")))
	assert.Equal(t, 1, db.calls)

	assert.Equal(t, "NL", l.Country(netip.MustParsePrefix("2001:db8::/32")))
	assert.Equal(t, Unknown, l.Country(netip.MustParsePrefix("10.0.0.0/8")))
	assert.Equal(t, Unknown, l.Country(netip.Prefix{}))

	require.NoError(t, l.Close())
	assert.True(t, db.closed)
	assert.Equal(t, Unknown, l.Country(netip.MustParsePrefix("192.0.2.0/24")))
}

func TestNilLookup(t *testing.T) {
	var l *Lookup
	assert.Equal(t, Unknown, l.Country(netip.MustParsePrefix("203.0.113.0/24")))
	assert.NoError(t, l.Close())
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := NewWithCacheSize(filepath.Join(t.TempDir(), "none.mmdb"), 0)
	assert.Error(t, err)
}
