// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/nflogipac/internal/config"
	"github.com/nflogipac/internal/types"
)

const clickhouseSchema = `
CREATE TABLE IF NOT EXISTS nflogipac_accounts (
    Timestamp  DateTime,
    GroupID    UInt16,
    Kind       String,
    Address    String,
    PrefixLen  UInt8,
    Bytes      UInt64,
    Lost       UInt16
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (GroupID, Timestamp);
`

// ClickHouse appends one row per account in a batch per report. Losses are
// carried on every row of the report so that they survive aggregation.
type ClickHouse struct {
	conn driver.Conn
}

func OpenClickHouse(ctx context.Context, cfg config.ClickHouseSinkConfig) (*ClickHouse, error) {
	port := cfg.Port
	if port == 0 {
		port = 9000
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	if err := conn.Exec(ctx, clickhouseSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	slog.Info("connected to ClickHouse", "host", cfg.Host, "port", port)
	return &ClickHouse{conn: conn}, nil
}

func (c *ClickHouse) Name() string { return "clickhouse" }

// clickhouseRows lays out a report in the column order of nflogipac_accounts.
func clickhouseRows(r types.Report) [][]any {
	rows := make([][]any, 0, len(r.Accounts))
	for _, a := range r.Accounts {
		rows = append(rows, []any{
			r.Time.UTC(),
			r.Group,
			r.Kind,
			a.Prefix.Addr().String(),
			uint8(a.Prefix.Bits()),
			a.Bytes,
			r.Lost,
		})
	}
	return rows
}

func (c *ClickHouse) Write(ctx context.Context, r types.Report) error {
	rows := clickhouseRows(r)
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO nflogipac_accounts")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append account to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	slog.Debug("wrote accounts to ClickHouse", "group", r.Group, "rows", len(rows))
	return nil
}

func (c *ClickHouse) Close() error { return c.conn.Close() }
