// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nflogipac/internal/collector"
	"github.com/nflogipac/internal/config"
	"github.com/nflogipac/internal/log"
)

var (
	configPath = flag.String("config", "/etc/nflogipac/collector.yaml", "Path to the YAML configuration")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides the configuration)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	if err := log.Configure(level); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	slog.Debug("logging configured", "level", level)

	slog.Info("starting nflogipac-collector",
		"config", *configPath,
		"exe", cfg.Exe,
		"groups", len(cfg.Groups),
		"interval", cfg.Interval,
		"listen", cfg.ListenAddress,
	)

	// Run collector (blocks until context is canceled)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := collector.Run(ctx, cfg); err != nil {
		slog.Error("collector run failed", "err", err)
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}
