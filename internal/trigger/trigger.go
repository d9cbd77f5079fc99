// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

// Package trigger runs exports paced by single bytes read from an input stream.
package trigger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Exporter writes one export sequence.
type Exporter interface {
	Export() error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func() error

func (f ExporterFunc) Export() error { return f() }

// Run reads r one byte at a time and calls e.Export for every byte. r should
// be unbuffered so that no trigger is read ahead. Run returns nil when r ends
// and an error when reading or exporting fails.
func Run(r io.Reader, e Exporter) error {
	var b [1]byte
	var exports uint64
	for {
		n, err := r.Read(b[:])
		if n == 0 {
			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) {
				slog.Debug("trigger input closed", "exports", exports)
				return nil
			}
			return fmt.Errorf("read trigger: %w", err)
		}
		if err := e.Export(); err != nil {
			return fmt.Errorf("export %d: %w", exports+1, err)
		}
		exports++
		slog.Debug("export written", "exports", exports)
	}
}
