// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nflogipac/internal/addr"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in   string
		want Spec
	}{
		{"ipv4src", Spec{Variant{addr.IPv4, addr.Source}, 32}},
		{"ipv4dst/24", Spec{Variant{addr.IPv4, addr.Destination}, 24}},
		{"ipv6src/0", Spec{Variant{addr.IPv6, addr.Source}, 0}},
		{"ipv6dst/128", Spec{Variant{addr.IPv6, addr.Destination}, 128}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSpec(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSpecErrors(t *testing.T) {
	for _, in := range []string{"", "ipv4", "ipv5src", "ipv4src/", "ipv4src/-1", "ipv4src/2a", "IPV4SRC"} {
		_, err := ParseSpec(in)
		assert.ErrorIs(t, err, ErrBadSpec, in)
	}
	_, err := ParseSpec("ipv4dst/33")
	assert.ErrorIs(t, err, ErrPrefixRange)
	_, err = ParseSpec("ipv6src/129")
	assert.ErrorIs(t, err, ErrPrefixRange)
}

func TestNewFromSpec(t *testing.T) {
	c, err := NewFromSpec("ipv6dst/48")
	require.NoError(t, err)
	assert.Equal(t, Variant{addr.IPv6, addr.Destination}, c.Variant())
	assert.Equal(t, 48, c.Prefix())
	assert.Equal(t, 40, c.CaptureLength())
}
