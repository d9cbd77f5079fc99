// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

// Package counter accumulates logged packet sizes per address prefix and
// exports them through the wire protocol.
package counter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/nflogipac/internal/addr"
	"github.com/nflogipac/internal/wire"
)

const (
	ipv4MinLen    = 20
	ipv6HeaderLen = 40
)

var ErrPrefixRange = errors.New("prefix length out of range")

// Variant is one of the four accounting flavours. It is chosen once per process.
type Variant struct {
	Family addr.Family
	Role   addr.Role
}

func (v Variant) String() string {
	return v.Family.String() + v.Role.String()
}

// CaptureLength is the number of packet bytes the kernel has to deliver so
// that the length field and the address field are both present.
func (v Variant) CaptureLength() int {
	return addr.FieldFor(v.Family, v.Role).End()
}

// contribution returns the number of bytes a packet adds to its bucket.
// payload is at least CaptureLength bytes long.
func (v Variant) contribution(payload []byte) uint64 {
	if v.Family == addr.IPv4 {
		return max(uint64(binary.BigEndian.Uint16(payload[2:4])), ipv4MinLen)
	}
	return ipv6HeaderLen + uint64(binary.BigEndian.Uint16(payload[4:6]))
}

// Snapshot is the state taken out of a counter by an export.
type Snapshot struct {
	Lost    uint64
	Buckets map[addr.Key]uint64
}

// Counter is the shared accounting store. Count, ReportLoss and Export may be
// called from different goroutines.
type Counter struct {
	variant Variant
	field   addr.Field
	prefix  int
	minLen  int

	mu      sync.Mutex
	buckets map[addr.Key]uint64
	lost    uint64
}

// New returns a counter for v truncating addresses to prefix bits.
func New(v Variant, prefix int) (*Counter, error) {
	if v.Family != addr.IPv4 && v.Family != addr.IPv6 {
		return nil, fmt.Errorf("unsupported family %s", v.Family)
	}
	if prefix < 0 || prefix > v.Family.Bits() {
		return nil, fmt.Errorf("%w: %d not in [0,%d] for %s", ErrPrefixRange, prefix, v.Family.Bits(), v.Family)
	}
	return &Counter{
		variant: v,
		field:   addr.FieldFor(v.Family, v.Role),
		prefix:  prefix,
		minLen:  v.CaptureLength(),
		buckets: make(map[addr.Key]uint64),
	}, nil
}

func (c *Counter) Variant() Variant { return c.variant }

func (c *Counter) Prefix() int { return c.prefix }

// CaptureLength is the copy range to request from the kernel.
func (c *Counter) CaptureLength() int { return c.minLen }

// Count accounts one packet. Payloads shorter than CaptureLength are ignored
// and reported as not counted.
func (c *Counter) Count(payload []byte) bool {
	key, ok := c.field.Extract(payload)
	if !ok {
		return false
	}
	addr.ApplyPrefix(key[:c.variant.Family.Len()], c.prefix)
	n := c.variant.contribution(payload)

	c.mu.Lock()
	c.buckets[key] += n
	c.mu.Unlock()
	return true
}

// ReportLoss records one receive event on which the kernel dropped messages.
func (c *Counter) ReportLoss() {
	c.mu.Lock()
	c.lost++
	c.mu.Unlock()
}

// Take swaps the live store and loss counter for empty ones and returns the
// previous values.
func (c *Counter) Take() Snapshot {
	fresh := make(map[addr.Key]uint64)
	c.mu.Lock()
	s := Snapshot{Lost: c.lost, Buckets: c.buckets}
	c.buckets = fresh
	c.lost = 0
	c.mu.Unlock()
	return s
}

// Export takes a snapshot and writes LOSS (when nonzero), one ACCOUNT per
// bucket and END, then flushes. On a write error the rest of the snapshot is
// dropped.
func (c *Counter) Export(e *wire.Encoder) error {
	s := c.Take()
	if s.Lost > 0 {
		if err := e.Loss(s.Lost); err != nil {
			return fmt.Errorf("write loss: %w", err)
		}
	}
	n := c.variant.Family.Len()
	for k, total := range s.Buckets {
		if err := e.Account(total, k[:n]); err != nil {
			return fmt.Errorf("write account: %w", err)
		}
	}
	if err := e.End(); err != nil {
		return fmt.Errorf("write end: %w", err)
	}
	if err := e.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
