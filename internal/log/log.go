// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

// Package log configures the process-wide slog logger. All binaries log to
// standard error: the daemon's standard output carries the export protocol.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const SupportedLevels = "debug, info, warn, error"

// levels maps accepted names to slog levels; "warning" is an alias of warn.
var levels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Configure installs a text logger on standard error as the slog default.
// os.Stderr is unbuffered, so records of a daemon killed by its collector
// are already written.
func Configure(level string) error {
	return ConfigureWriter(level, os.Stderr, nil)
}

// ConfigureWriter is Configure with an explicit destination and attributes
// attached to every record, e.g. the daemon's nflog group.
func ConfigureWriter(level string, w io.Writer, attrs []slog.Attr) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	var h slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})
	if len(attrs) > 0 {
		h = h.WithAttrs(attrs)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// ParseLevel maps a level name (case-insensitive) to its slog level. The
// empty string means info.
func ParseLevel(level string) (slog.Level, error) {
	l, ok := levels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be one of %s", level, SupportedLevels)
	}
	return l, nil
}
