// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package collector

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/nflogipac/internal/addr"
	"github.com/nflogipac/internal/counter"
	"github.com/nflogipac/internal/types"
	"github.com/nflogipac/internal/wire"
)

// assembler turns the message stream of one daemon into reports.
type assembler struct {
	group  uint16
	kind   string
	family addr.Family
	prefix int

	cur     types.Report
	started bool
	sawLoss bool
}

func newAssembler(group uint16, kind string) (*assembler, error) {
	spec, err := counter.ParseSpec(kind)
	if err != nil {
		return nil, err
	}
	return &assembler{
		group:  group,
		kind:   kind,
		family: spec.Variant.Family,
		prefix: spec.Prefix,
	}, nil
}

// feed consumes one message. It returns a complete report on END.
func (a *assembler) feed(m wire.Message, now time.Time) (types.Report, bool, error) {
	if !a.started {
		a.cur = types.Report{Time: now, Group: a.group, Kind: a.kind}
		a.started = true
	}
	switch m.Type {
	case wire.TypeLoss:
		if a.sawLoss || len(a.cur.Accounts) != 0 {
			return types.Report{}, false, fmt.Errorf("%w: LOSS out of order", wire.ErrMalformed)
		}
		a.cur.Lost = m.Lost
		a.sawLoss = true
	case wire.TypeAccount:
		k, err := addr.KeyFrom(a.family, m.Addr)
		if err != nil {
			return types.Report{}, false, fmt.Errorf("%w: %w", wire.ErrMalformed, err)
		}
		a.cur.Accounts = append(a.cur.Accounts, types.Account{
			Prefix: netip.PrefixFrom(k.Addr(a.family), a.prefix),
			Bytes:  m.Total,
		})
	case wire.TypeEnd:
		r := a.cur
		a.cur = types.Report{}
		a.started = false
		a.sawLoss = false
		return r, true, nil
	}
	return types.Report{}, false, nil
}
