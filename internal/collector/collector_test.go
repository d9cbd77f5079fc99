// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package collector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nflogipac/internal/config"
	"github.com/nflogipac/internal/counter"
	"github.com/nflogipac/internal/trigger"
	"github.com/nflogipac/internal/types"
	"github.com/nflogipac/internal/wire"
)

// The test binary doubles as the accounting daemon when this variable is set.
const fakeDaemonEnv = "NFLOGIPAC_FAKE_DAEMON"

func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeDaemonEnv); mode != "" {
		os.Exit(fakeDaemon(mode, os.Args[1:]))
	}
	os.Exit(m.Run())
}

func ipv4Packet(src string, totlen uint16) []byte {
	p := make([]byte, 20)
	p[0] = 0x45
	binary.BigEndian.PutUint16(p[2:4], totlen)
	a := netip.MustParseAddr(src).As4()
	copy(p[12:16], a[:])
	return p
}

func fakeDaemon(mode string, args []string) int {
	switch mode {
	case "exit":
		return 3
	case "silent":
		io.Copy(io.Discard, os.Stdin)
		return 0
	case "garbage":
		var b [1]byte
		os.Stdin.Read(b[:])
		os.Stdout.Write([]byte{0, 4, 0, 9})
		io.Copy(io.Discard, os.Stdin)
		return 0
	}

	c, err := counter.NewFromSpec(args[1])
	if err != nil {
		return 2
	}
	enc := wire.NewEncoder(bufio.NewWriter(os.Stdout))
	err = trigger.Run(os.Stdin, trigger.ExporterFunc(func() error {
		c.Count(ipv4Packet("203.0.113.7", 100))
		c.Count(ipv4Packet("203.0.113.200", 60))
		c.ReportLoss()
		return c.Export(enc)
	}))
	if err != nil {
		return 1
	}
	return 0
}

type recordSink struct {
	mu      sync.Mutex
	reports []types.Report
	want    int
	reached func()
	err     error
}

func (s *recordSink) Name() string { return "record" }

func (s *recordSink) Write(_ context.Context, r types.Report) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	if len(s.reports) == s.want && s.reached != nil {
		s.reached()
	}
	return nil
}

func (s *recordSink) Close() error { return nil }

func (s *recordSink) all() []types.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Report(nil), s.reports...)
}

func newTestCollector(t *testing.T, mode string, rec *recordSink, groups ...config.GroupConfig) *Collector {
	t.Helper()
	t.Setenv(fakeDaemonEnv, mode)
	exe, err := os.Executable()
	require.NoError(t, err)

	m := newMetrics()
	m.register(prometheus.NewRegistry())
	return &Collector{
		cfg: &config.Config{
			Exe:      exe,
			Interval: 10 * time.Millisecond,
			Groups:   groups,
		},
		metrics: m,
		sink:    rec,
	}
}

func TestServeDeliversReports(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rec := &recordSink{want: 3, reached: cancel}
	c := newTestCollector(t, "count", rec, config.GroupConfig{Group: 1, Kind: "ipv4src/24"})

	require.NoError(t, c.serve(ctx))

	reports := rec.all()
	require.GreaterOrEqual(t, len(reports), 3)
	for _, r := range reports {
		assert.Equal(t, uint16(1), r.Group)
		assert.Equal(t, "ipv4src/24", r.Kind)
		assert.Equal(t, uint16(1), r.Lost)
		assert.Equal(t, []types.Account{
			{Prefix: netip.MustParsePrefix("203.0.113.0/24"), Bytes: 160},
		}, r.Accounts)
	}
	n := float64(len(reports))
	assert.Equal(t, n, testutil.ToFloat64(c.metrics.reportsTotal.WithLabelValues("1")))
	assert.Equal(t, 160*n, testutil.ToFloat64(c.metrics.bytesTotal.WithLabelValues("1", "UNKNOWN")))
}

func TestServeSeveralGroups(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rec := &recordSink{want: 6, reached: cancel}
	c := newTestCollector(t, "count", rec,
		config.GroupConfig{Group: 1, Kind: "ipv4src/24"},
		config.GroupConfig{Group: 2, Kind: "ipv4src/16"},
	)

	require.NoError(t, c.serve(ctx))

	seen := map[uint16]netip.Prefix{}
	for _, r := range rec.all() {
		require.Len(t, r.Accounts, 1)
		seen[r.Group] = r.Accounts[0].Prefix
	}
	assert.Equal(t, map[uint16]netip.Prefix{
		1: netip.MustParsePrefix("203.0.113.0/24"),
		2: netip.MustParsePrefix("203.0.0.0/16"),
	}, seen)
}

func TestServeDaemonExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c := newTestCollector(t, "exit", &recordSink{}, config.GroupConfig{Group: 1, Kind: "ipv4src"})

	assert.Error(t, c.serve(ctx))
}

func TestServeMalformedStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c := newTestCollector(t, "garbage", &recordSink{}, config.GroupConfig{Group: 1, Kind: "ipv4src"})

	assert.ErrorIs(t, c.serve(ctx), wire.ErrMalformed)
}

func TestServeSinkFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	errDown := errors.New("database down")
	c := newTestCollector(t, "count", &recordSink{err: errDown}, config.GroupConfig{Group: 1, Kind: "ipv4dst"})

	assert.ErrorIs(t, c.serve(ctx), errDown)
}

func TestServeSkipsTriggerWhileOutstanding(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	rec := &recordSink{}
	c := newTestCollector(t, "silent", rec, config.GroupConfig{Group: 4, Kind: "ipv6src"})

	require.NoError(t, c.serve(ctx))
	assert.Empty(t, rec.all())
	assert.Greater(t, testutil.ToFloat64(c.metrics.triggersSkippedTotal.WithLabelValues("4")), 0.0)
}

func TestServeStartFailure(t *testing.T) {
	c := newTestCollector(t, "count", &recordSink{}, config.GroupConfig{Group: 1, Kind: "ipv4src"})
	c.cfg.Exe = filepath.Join(t.TempDir(), "missing")

	assert.Error(t, c.serve(context.Background()))
}
