// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nflogipac/internal/counter"
)

// GroupConfig is one daemon to run: the nflog group and its counter spec.
type GroupConfig struct {
	Group uint16 `yaml:"group"`
	Kind  string `yaml:"kind"`
}

type DebugSinkConfig struct {
	Enabled bool `yaml:"enabled"`
}

type SpawnSinkConfig struct {
	Cmdline string `yaml:"cmdline"`
}

type SQLiteSinkConfig struct {
	Path string `yaml:"path"`
}

type ClickHouseSinkConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type NATSSinkConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SinksConfig enables a sink by its section being present (debug needs enabled: true).
type SinksConfig struct {
	Debug      DebugSinkConfig       `yaml:"debug"`
	Spawn      *SpawnSinkConfig      `yaml:"spawn"`
	SQLite     *SQLiteSinkConfig     `yaml:"sqlite"`
	ClickHouse *ClickHouseSinkConfig `yaml:"clickhouse"`
	NATS       *NATSSinkConfig       `yaml:"nats"`
}

// Config is the collector configuration.
type Config struct {
	Exe            string        `yaml:"exe"`
	Interval       time.Duration `yaml:"interval"`
	LogLevel       string        `yaml:"log_level"`
	ListenAddress  string        `yaml:"listen_address"`
	MetricsPath    string        `yaml:"metrics_path"`
	GeoIPDB        string        `yaml:"geoip_db"`
	GeoIPCacheSize int           `yaml:"geoip_cache_size"`
	Groups         []GroupConfig `yaml:"groups"`
	Sinks          SinksConfig   `yaml:"sinks"`
}

// Defaults applied to fields left empty.
const (
	DefaultExe         = "/usr/sbin/nflogipacd"
	DefaultInterval    = time.Minute
	DefaultMetricsPath = "/metrics"
	DefaultNATSSubject = "nflogipac.reports"
)

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Exe == "" {
		c.Exe = DefaultExe
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.MetricsPath == "" {
		c.MetricsPath = DefaultMetricsPath
	}
	if c.Sinks.NATS != nil && c.Sinks.NATS.Subject == "" {
		c.Sinks.NATS.Subject = DefaultNATSSubject
	}
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("interval must be > 0, got %v", c.Interval)
	}
	if len(c.Groups) == 0 {
		return errors.New("at least one group must be configured")
	}
	seen := make(map[uint16]struct{}, len(c.Groups))
	for _, g := range c.Groups {
		if _, dup := seen[g.Group]; dup {
			return fmt.Errorf("group %d configured twice", g.Group)
		}
		seen[g.Group] = struct{}{}
		if _, err := counter.ParseSpec(g.Kind); err != nil {
			return fmt.Errorf("group %d: %w", g.Group, err)
		}
	}
	if c.Sinks.Spawn != nil && c.Sinks.Spawn.Cmdline == "" {
		return errors.New("sinks.spawn.cmdline must not be empty")
	}
	if c.Sinks.SQLite != nil && c.Sinks.SQLite.Path == "" {
		return errors.New("sinks.sqlite.path must not be empty")
	}
	if c.Sinks.ClickHouse != nil && c.Sinks.ClickHouse.Host == "" {
		return errors.New("sinks.clickhouse.host must not be empty")
	}
	if c.Sinks.NATS != nil && c.Sinks.NATS.URL == "" {
		return errors.New("sinks.nats.url must not be empty")
	}
	return nil
}
