// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

// Package ingest reads logged packets from an nfnetlink_log group and feeds
// their headers to a counter.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/florianl/go-nflog/v2"
	"golang.org/x/sys/unix"
)

// DefaultReceiveBuffer is the socket receive buffer forced on the netlink socket.
const DefaultReceiveBuffer = 1 << 20

// Counter is the accounting side of the loop.
type Counter interface {
	Count(payload []byte) bool
	ReportLoss()
	CaptureLength() int
}

// Config is read-only once Open is called.
type Config struct {
	Group         uint16
	ReceiveBuffer int // 0 = DefaultReceiveBuffer
}

// Stats are the loop's own counters, for logging.
type Stats struct {
	Packets uint64
	Short   uint64
	Losses  uint64
}

type loop struct {
	ctx     context.Context
	counter Counter
	minLen  int
	fatal   chan error

	packets atomic.Uint64
	short   atomic.Uint64
	losses  atomic.Uint64
}

func newLoop(ctx context.Context, c Counter) *loop {
	return &loop{
		ctx:     ctx,
		counter: c,
		minLen:  c.CaptureLength(),
		fatal:   make(chan error, 1),
	}
}

// handlePacket is the nflog hook. Payloads truncated below the capture length
// cannot be measured and are dropped silently.
func (l *loop) handlePacket(a nflog.Attribute) int {
	if a.Payload == nil {
		return 0
	}
	p := *a.Payload
	if len(p) < l.minLen {
		l.short.Add(1)
		return 0
	}
	l.packets.Add(1)
	l.counter.Count(p)
	return 0
}

// handleError is the nflog error hook. A full receive buffer is recorded as
// one loss event; anything else ends the loop.
func (l *loop) handleError(err error) int {
	if errors.Is(err, unix.ENOBUFS) {
		l.losses.Add(1)
		l.counter.ReportLoss()
		return 0
	}
	if l.ctx.Err() != nil {
		return 1
	}
	select {
	case l.fatal <- err:
	default:
	}
	return 1
}

func (l *loop) stats() Stats {
	return Stats{Packets: l.packets.Load(), Short: l.short.Load(), Losses: l.losses.Load()}
}

// Listener is a bound nflog group delivering packets to a counter.
type Listener struct {
	nf     *nflog.Nflog
	loop   *loop
	group  uint16
	cancel context.CancelFunc
}

// Open binds the group and starts receiving. Errors are returned after every
// acquired resource has been released again.
func Open(ctx context.Context, cfg Config, c Counter) (*Listener, error) {
	rcvbuf := cfg.ReceiveBuffer
	if rcvbuf <= 0 {
		rcvbuf = DefaultReceiveBuffer
	}
	caplen := c.CaptureLength()

	nf, err := nflog.Open(&nflog.Config{
		Group:    cfg.Group,
		Copymode: nflog.CopyPacket,
		Bufsize:  uint32(caplen),
		Logger:   slogAdapter{slog.Default().With("component", "nflog")},
	})
	if err != nil {
		return nil, fmt.Errorf("open nflog handle: %w", err)
	}
	slog.Debug("nflog handle opened", "group", cfg.Group)

	if err := forceReceiveBuffer(nf, rcvbuf); err != nil {
		nf.Close()
		return nil, fmt.Errorf("receive buffer %d: %w", rcvbuf, err)
	}
	slog.Debug("receive buffer set", "bytes", rcvbuf)

	ctx, cancel := context.WithCancel(ctx)
	l := newLoop(ctx, c)
	if err := nf.RegisterWithErrorFunc(ctx, l.handlePacket, l.handleError); err != nil {
		cancel()
		nf.Close()
		return nil, fmt.Errorf("bind group %d: %w", cfg.Group, err)
	}
	slog.Info("nflog group bound", "group", cfg.Group, "capture_length", caplen)

	return &Listener{nf: nf, loop: l, group: cfg.Group, cancel: cancel}, nil
}

// Wait blocks until ctx is canceled (nil) or receiving fails for any reason
// other than a full buffer (non-nil).
func (ln *Listener) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-ln.loop.ctx.Done():
		return nil
	case err := <-ln.loop.fatal:
		st := ln.loop.stats()
		slog.Error("receive failed", "group", ln.group, "err", err, "packets", st.Packets, "losses", st.Losses)
		return fmt.Errorf("receive on group %d: %w", ln.group, err)
	}
}

// Stats returns the loop counters.
func (ln *Listener) Stats() Stats { return ln.loop.stats() }

// Close stops receiving and releases the socket.
func (ln *Listener) Close() error {
	ln.cancel()
	return ln.nf.Close()
}

func forceReceiveBuffer(nf *nflog.Nflog, size int) error {
	rc, err := nf.Con.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	if err := rc.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUFFORCE, size)
	}); err != nil {
		return err
	}
	return serr
}

type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Debugf(format string, args ...interface{}) {
	a.l.Debug(fmt.Sprintf(format, args...))
}

func (a slogAdapter) Errorf(format string, args ...interface{}) {
	a.l.Error(fmt.Sprintf(format, args...))
}
