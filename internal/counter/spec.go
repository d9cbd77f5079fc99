// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package counter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nflogipac/internal/addr"
)

var ErrBadSpec = errors.New("counter spec must match ipv[46]{src,dst}(/[0-9]+)?")

var variants = map[string]Variant{
	"ipv4src": {Family: addr.IPv4, Role: addr.Source},
	"ipv4dst": {Family: addr.IPv4, Role: addr.Destination},
	"ipv6src": {Family: addr.IPv6, Role: addr.Source},
	"ipv6dst": {Family: addr.IPv6, Role: addr.Destination},
}

// Spec is a parsed counter specification such as "ipv4dst/24".
type Spec struct {
	Variant Variant
	Prefix  int
}

func (s Spec) String() string {
	return fmt.Sprintf("%s/%d", s.Variant, s.Prefix)
}

// ParseSpec parses "(ipv4|ipv6)(src|dst)(/<prefix>)?". A missing prefix means
// the full address width.
func ParseSpec(s string) (Spec, error) {
	name, prefix, hasPrefix := strings.Cut(s, "/")
	v, ok := variants[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrBadSpec, s)
	}
	if !hasPrefix {
		return Spec{Variant: v, Prefix: v.Family.Bits()}, nil
	}
	if prefix == "" || strings.TrimLeft(prefix, "0123456789") != "" {
		return Spec{}, fmt.Errorf("%w: %q", ErrBadSpec, s)
	}
	n, err := strconv.Atoi(prefix)
	if err != nil || n > v.Family.Bits() {
		return Spec{}, fmt.Errorf("%w: %q allows at most /%d", ErrPrefixRange, s, v.Family.Bits())
	}
	return Spec{Variant: v, Prefix: n}, nil
}

// NewFromSpec parses s and builds the counter it describes.
func NewFromSpec(s string) (*Counter, error) {
	spec, err := ParseSpec(s)
	if err != nil {
		return nil, err
	}
	return New(spec.Variant, spec.Prefix)
}
