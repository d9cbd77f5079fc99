// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

// Package sink delivers collected reports to their destinations.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/multierr"

	"github.com/nflogipac/internal/config"
	"github.com/nflogipac/internal/types"
)

// Sink accepts reports. Write is called from a single goroutine.
type Sink interface {
	Name() string
	Write(ctx context.Context, r types.Report) error
	Close() error
}

// Multi writes every report to all sinks in order and stops at the first error.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

func (m Multi) Write(ctx context.Context, r types.Report) error {
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			return fmt.Errorf("sink %s: %w", s.Name(), err)
		}
	}
	return nil
}

func (m Multi) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// FromConfig opens every configured sink. On error the sinks opened so far
// are closed again.
func FromConfig(ctx context.Context, cfg config.SinksConfig) (Multi, error) {
	var m Multi
	fail := func(err error) (Multi, error) {
		return nil, multierr.Append(err, m.Close())
	}
	if cfg.Debug.Enabled {
		m = append(m, NewDebug(os.Stdout))
	}
	if cfg.Spawn != nil {
		m = append(m, NewSpawn(cfg.Spawn.Cmdline))
	}
	if cfg.SQLite != nil {
		s, err := OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return fail(err)
		}
		m = append(m, s)
	}
	if cfg.ClickHouse != nil {
		s, err := OpenClickHouse(ctx, *cfg.ClickHouse)
		if err != nil {
			return fail(err)
		}
		m = append(m, s)
	}
	if cfg.NATS != nil {
		s, err := OpenNATS(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return fail(err)
		}
		m = append(m, s)
	}
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	slog.Info("sinks ready", "sinks", names)
	return m, nil
}
