// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

// Package addr reads address fields out of raw IP headers and truncates them
// to a network prefix.
package addr

import (
	"fmt"
	"net/netip"
)

// Family is the IP version of the logged packets.
type Family uint8

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

// Len returns the address width in bytes.
func (f Family) Len() int {
	if f == IPv6 {
		return 16
	}
	return 4
}

// Bits returns the address width in bits.
func (f Family) Bits() int { return f.Len() * 8 }

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

// Role selects which header address is accounted.
type Role uint8

const (
	Source Role = iota
	Destination
)

func (r Role) String() string {
	if r == Destination {
		return "dst"
	}
	return "src"
}

// Field is the location of an address inside an IP header.
type Field struct {
	Family Family
	Offset int
}

// End is the number of header bytes needed to read the field.
func (f Field) End() int { return f.Offset + f.Family.Len() }

// FieldFor returns the header field for the given family and role.
func FieldFor(f Family, r Role) Field {
	switch {
	case f == IPv4 && r == Source:
		return Field{Family: IPv4, Offset: 12}
	case f == IPv4:
		return Field{Family: IPv4, Offset: 16}
	case r == Source:
		return Field{Family: IPv6, Offset: 8}
	default:
		return Field{Family: IPv6, Offset: 24}
	}
}

// Key is a bucket key. IPv4 keys use the first four bytes, the rest stay zero,
// so keys of one family compare and hash over their raw bytes.
type Key [16]byte

// Extract copies the field out of payload into a Key. It reports false when
// payload is too short to hold the field.
func (f Field) Extract(payload []byte) (Key, bool) {
	var k Key
	if len(payload) < f.End() {
		return k, false
	}
	copy(k[:f.Family.Len()], payload[f.Offset:f.End()])
	return k, true
}

// ApplyPrefix zeroes every bit of b at position >= bits. In the byte the
// boundary falls into, only the low-order bits are cleared.
func ApplyPrefix(b []byte, bits int) {
	n := bits / 8
	if n >= len(b) {
		return
	}
	b[n] &^= 0xff >> uint(bits%8)
	clear(b[n+1:])
}

// Addr returns the key as an address of family f.
func (k Key) Addr(f Family) netip.Addr {
	if f == IPv4 {
		return netip.AddrFrom4([4]byte(k[:4]))
	}
	return netip.AddrFrom16([16]byte(k))
}

// KeyFrom builds a key from raw address bytes of family f.
func KeyFrom(f Family, b []byte) (Key, error) {
	var k Key
	if len(b) != f.Len() {
		return k, fmt.Errorf("%s address must be %d bytes, got %d", f, f.Len(), len(b))
	}
	copy(k[:], b)
	return k, nil
}
