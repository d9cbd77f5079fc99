// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package types

import (
	"net/netip"
	"time"
)

// Account is one bucket of an export: the masked prefix and its byte total.
type Account struct {
	Prefix netip.Prefix
	Bytes  uint64
}

// Report is everything one daemon exported for one trigger. Lost is the
// number of receive events on which the kernel dropped packets (saturated).
type Report struct {
	Time     time.Time
	Group    uint16
	Kind     string
	Lost     uint16
	Accounts []Account
}

// TotalBytes sums the accounts of the report.
func (r Report) TotalBytes() uint64 {
	var n uint64
	for _, a := range r.Accounts {
		n += a.Bytes
	}
	return n
}
