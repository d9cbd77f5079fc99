// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/nflogipac/internal/types"
)

// Debug prints a human readable line per account, loss and end of report.
type Debug struct {
	w io.Writer
}

func NewDebug(w io.Writer) *Debug { return &Debug{w: w} }

func (d *Debug) Name() string { return "debug" }

func (d *Debug) Write(_ context.Context, r types.Report) error {
	if r.Lost > 0 {
		if _, err := fmt.Fprintf(d.w, "missed at least %d packets for group %d\n", r.Lost, r.Group); err != nil {
			return err
		}
	}
	for _, a := range r.Accounts {
		if _, err := fmt.Fprintf(d.w, "accounting %d bytes for address %s on group %d\n", a.Bytes, a.Prefix.Addr(), r.Group); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(d.w, "ending write for group %d\n", r.Group)
	return err
}

func (d *Debug) Close() error { return nil }
