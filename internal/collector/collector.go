// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

// Package collector runs one accounting daemon per nflog group, triggers
// their exports on a fixed interval and hands the decoded reports to the
// configured sinks.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/nflogipac/internal/config"
	"github.com/nflogipac/internal/geoip"
	"github.com/nflogipac/internal/sink"
	"github.com/nflogipac/internal/types"
)

type Collector struct {
	cfg     *config.Config
	geo     *geoip.Lookup
	metrics *metrics
	sink    sink.Sink
}

// Run blocks until ctx is canceled or a daemon, the trigger loop or a sink
// fails. Cancellation is a clean shutdown and returns nil.
func Run(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := newMetrics()
	m.register(reg)
	m.configInterval.Set(cfg.Interval.Seconds())
	m.configGroups.Set(float64(len(cfg.Groups)))

	var geo *geoip.Lookup
	if cfg.GeoIPDB != "" {
		g, err := geoip.NewWithCacheSize(cfg.GeoIPDB, cfg.GeoIPCacheSize)
		if err != nil {
			slog.Warn("geoip db open failed, using UNKNOWN for all", "path", cfg.GeoIPDB, "err", err)
		} else {
			geo = g
			defer geo.Close()
		}
	}

	sinks, err := sink.FromConfig(ctx, cfg.Sinks)
	if err != nil {
		slog.Error("open sinks failed", "err", err)
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			slog.Error("close sinks", "err", err)
		}
	}()
	slog.Info("sinks opened", "count", len(sinks))

	if cfg.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(
			reg,
			promhttp.HandlerOpts{EnableOpenMetrics: true},
		))
		srv := &http.Server{Addr: cfg.ListenAddress, Handler: mux}
		slog.Debug("HTTP server starting", "listen", cfg.ListenAddress, "metrics_path", cfg.MetricsPath)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	c := &Collector{cfg: cfg, geo: geo, metrics: m, sink: sinks}
	return c.serve(ctx)
}

func (c *Collector) serve(ctx context.Context) error {
	daemons := make([]*daemon, 0, len(c.cfg.Groups))
	for _, g := range c.cfg.Groups {
		d, err := startDaemon(c.cfg.Exe, g)
		if err != nil {
			for _, d := range daemons {
				d.stop()
				d.kill()
				d.cmd.Wait()
			}
			slog.Error("start daemon failed", "group", g.Group, "err", err)
			return err
		}
		daemons = append(daemons, d)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reports := make(chan types.Report, 2*len(daemons))
	written := make(chan error, 1)
	go func() {
		written <- c.write(ctx, reports, cancel)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range daemons {
		d := d
		g.Go(func() error {
			return d.read(reports)
		})
	}
	g.Go(func() error {
		return c.tick(gctx, daemons)
	})

	err := g.Wait()
	close(reports)
	err = multierr.Append(err, <-written)
	if err != nil {
		slog.Error("collector stopped", "err", err)
	}
	return err
}

// tick sends the export triggers. On return every daemon has been asked for
// a last report and told to stop.
func (c *Collector) tick(ctx context.Context, daemons []*daemon) error {
	defer func() {
		for _, d := range daemons {
			if _, err := d.trigger(); err != nil {
				slog.Debug("final trigger", "err", err)
			}
			d.stop()
		}
	}()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	slog.Debug("trigger loop started", "interval", c.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("context canceled, exiting trigger loop")
			return nil
		case <-ticker.C:
			for _, d := range daemons {
				sent, err := d.trigger()
				if err != nil {
					if d.stopping.Load() {
						continue
					}
					return err
				}
				if !sent {
					c.metrics.triggersSkippedTotal.WithLabelValues(strconv.Itoa(int(d.group.Group))).Inc()
					slog.Warn("previous report still outstanding, trigger skipped", "group", d.group.Group)
				}
			}
		}
	}
}

// write is the only goroutine touching the sinks. After the first sink
// error it cancels the collector and discards the remaining reports.
func (c *Collector) write(ctx context.Context, reports <-chan types.Report, cancel context.CancelFunc) error {
	ctx = context.WithoutCancel(ctx)
	var failed error
	for r := range reports {
		if failed != nil {
			continue
		}
		c.metrics.observe(r, c.geo)
		start := time.Now()
		if err := c.sink.Write(ctx, r); err != nil {
			failed = err
			slog.Error("sink write failed", "group", r.Group, "err", err)
			cancel()
			continue
		}
		c.metrics.sinkWriteDurationSecond.Set(time.Since(start).Seconds())
	}
	if failed != nil {
		return fmt.Errorf("delivering reports: %w", failed)
	}
	return nil
}
