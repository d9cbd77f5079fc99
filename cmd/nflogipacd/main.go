// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nflogipac/internal/counter"
	"github.com/nflogipac/internal/ingest"
	"github.com/nflogipac/internal/log"
	"github.com/nflogipac/internal/trigger"
	"github.com/nflogipac/internal/wire"
)

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "usage: %s [flags] group counter\n", fs.Name())
	fmt.Fprintln(w, "group is the nfnetlink_log group number")
	fmt.Fprintln(w, "counter is one of ipv[46]{src,dst} with an optional /prefix-length")
	fs.PrintDefaults()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run is the only place that decides the exit status. Usage errors go to
// stderr and exit 1.
func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("nflogipacd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(fs) }
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	rcvbuf := fs.Int("rcvbuf", ingest.DefaultReceiveBuffer, "Forced netlink receive buffer size in bytes")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "takes precisely 2 arguments: group counter")
		fs.Usage()
		return 1
	}
	group, err := strconv.ParseUint(fs.Arg(0), 10, 16)
	if err != nil {
		fmt.Fprintln(stderr, "first parameter must be a number")
		return 1
	}
	c, err := counter.NewFromSpec(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(stderr, "second parameter must be one matching ipv[46]{src,dst}(/[0-9]+)?: %v\n", err)
		return 1
	}
	if err := log.ConfigureWriter(*logLevel, stderr, []slog.Attr{slog.Uint64("group", group)}); err != nil {
		fmt.Fprintf(stderr, "invalid log level: %v\n", err)
		return 1
	}
	slog.Debug("counter configured", "variant", c.Variant(), "prefix", c.Prefix(), "capture_length", c.CaptureLength())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln, err := ingest.Open(ctx, ingest.Config{Group: uint16(group), ReceiveBuffer: *rcvbuf}, c)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		st := ln.Stats()
		ln.Close()
		slog.Info("ingest stopped", "packets", st.Packets, "short", st.Short, "losses", st.Losses)
	}()

	ingestErr := make(chan error, 1)
	go func() { ingestErr <- ln.Wait(ctx) }()

	enc := wire.NewEncoder(bufio.NewWriter(os.Stdout))
	triggerErr := make(chan error, 1)
	go func() {
		triggerErr <- trigger.Run(os.Stdin, trigger.ExporterFunc(func() error {
			return c.Export(enc)
		}))
	}()

	select {
	case err := <-ingestErr:
		if err != nil {
			slog.Error("packet ingestion failed", "err", err)
			return 1
		}
		slog.Info("shutting down")
		return 0
	case err := <-triggerErr:
		if err != nil {
			slog.Error("export loop failed", "err", err)
			return 1
		}
		slog.Debug("trigger input closed, exiting")
		return 0
	}
}
