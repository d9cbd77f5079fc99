// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package collector

import (
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nflogipac/internal/geoip"
	"github.com/nflogipac/internal/types"
)

type metrics struct {
	bytesTotal              *prometheus.CounterVec
	reportsTotal            *prometheus.CounterVec
	lossEventsTotal         *prometheus.CounterVec
	reportAccounts          *prometheus.GaugeVec
	triggersSkippedTotal    *prometheus.CounterVec
	sinkWriteDurationSecond prometheus.Gauge
	configInterval          prometheus.Gauge
	configGroups            prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nflogipac_bytes_total",
				Help: "Total accounted bytes (monotonic), by nflog group and country of the exported prefix.",
			},
			[]string{"group", "country"},
		),
		reportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nflogipac_reports_total",
				Help: "Reports received from the accounting daemons.",
			},
			[]string{"group"},
		),
		lossEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nflogipac_loss_events_total",
				Help: "Receive events on which the kernel dropped packets, as reported by the daemons (saturated per report).",
			},
			[]string{"group"},
		),
		reportAccounts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nflogipac_report_accounts",
				Help: "Number of prefixes in the last report.",
			},
			[]string{"group"},
		),
		triggersSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nflogipac_triggers_skipped_total",
				Help: "Export triggers not sent because the previous report was still outstanding.",
			},
			[]string{"group"},
		),
		sinkWriteDurationSecond: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nflogipac_sink_write_duration_seconds",
				Help: "Time in seconds to hand the last report to all sinks.",
			},
		),
		configInterval: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nflogipac_config_interval_seconds",
				Help: "Configured export interval in seconds.",
			},
		),
		configGroups: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nflogipac_config_groups",
				Help: "Number of configured nflog groups.",
			},
		),
	}
}

func (m *metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.bytesTotal,
		m.reportsTotal,
		m.lossEventsTotal,
		m.reportAccounts,
		m.triggersSkippedTotal,
		m.sinkWriteDurationSecond,
		m.configInterval,
		m.configGroups,
	)
	slog.Info("Prometheus metrics registered")
}

// observe accounts one report. geo may be nil.
func (m *metrics) observe(r types.Report, geo *geoip.Lookup) {
	group := strconv.Itoa(int(r.Group))
	m.reportsTotal.WithLabelValues(group).Inc()
	m.lossEventsTotal.WithLabelValues(group).Add(float64(r.Lost))
	m.reportAccounts.WithLabelValues(group).Set(float64(len(r.Accounts)))
	for _, a := range r.Accounts {
		m.bytesTotal.WithLabelValues(group, geo.Country(a.Prefix)).Add(float64(a.Bytes))
	}
}
