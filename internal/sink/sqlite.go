// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nflogipac/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL, -- Unix timestamp of the export
	grp INTEGER NOT NULL,
	address TEXT NOT NULL,
	prefix_len INTEGER NOT NULL,
	bytes INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_ts ON accounts(ts);
CREATE INDEX IF NOT EXISTS idx_accounts_address ON accounts(address);
CREATE TABLE IF NOT EXISTS losses (
	ts INTEGER NOT NULL,
	grp INTEGER NOT NULL,
	events INTEGER NOT NULL
);
`

// SQLite stores accounts and losses in a local database, one transaction per report.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Write(ctx context.Context, r types.Report) error {
	if len(r.Accounts) == 0 && r.Lost == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := r.Time.Unix()
	if r.Lost > 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO losses (ts, grp, events) VALUES (?, ?, ?)`, ts, r.Group, r.Lost); err != nil {
			return fmt.Errorf("insert loss: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO accounts (ts, grp, address, prefix_len, bytes) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range r.Accounts {
		// SQLite integers are signed; totals above 2^63 wrap like the counter itself.
		if _, err := stmt.ExecContext(ctx, ts, r.Group, a.Prefix.Addr().String(), a.Prefix.Bits(), int64(a.Bytes)); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error { return s.db.Close() }
