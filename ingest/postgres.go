//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of Tabload.
//
// Tabload is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tabload is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tabload. If not, see https://www.gnu.org/licenses/.

package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/aaronlmathis/tabload/core"
)

// This file implements the PostgreSQL destination. Rows are written with
// INSERT ... ON CONFLICT (id) DO UPDATE inside one transaction per Merge call.

// PostgresOptions configures the PostgreSQL destination.
type PostgresOptions struct {
	DSN             string        // PostgreSQL connection string
	MaxOpenConns    int           // Max open connections
	MaxIdleConns    int           // Max idle connections
	ConnMaxLifetime time.Duration // Max connection lifetime
	QueryTimeout    time.Duration // Timeout for connect and each Merge
}

// PostgresOption represents a configuration function for PostgresOptions.
type PostgresOption func(*PostgresOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen, maxIdle int, maxLifetime time.Duration) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
		opts.ConnMaxLifetime = maxLifetime
	}
}

// WithPostgresQueryTimeout sets the query timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresOption {
	return func(opts *PostgresOptions) {
		opts.QueryTimeout = timeout
	}
}

// withDefaults applies default values to PostgresOptions.
func (opts *PostgresOptions) withDefaults() *PostgresOptions {
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 4
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 2
	}
	return opts
}

// PostgresDestination merges records into PostgreSQL tables.
type PostgresDestination struct {
	db      *sql.DB
	options PostgresOptions
	created map[string]bool
	mu      sync.Mutex
}

var _ Destination = (*PostgresDestination)(nil)

// NewPostgresDestination connects to PostgreSQL and verifies the connection.
func NewPostgresDestination(ctx context.Context, opts ...PostgresOption) (*PostgresDestination, error) {
	options := &PostgresOptions{}
	for _, opt := range opts {
		opt(options)
	}
	options = options.withDefaults()

	if options.DSN == "" {
		return nil, &IngestError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}

	db, err := sql.Open("postgres", options.DSN)
	if err != nil {
		return nil, &IngestError{Op: "connect", Err: fmt.Errorf("failed to open database: %w", err)}
	}
	db.SetMaxOpenConns(options.MaxOpenConns)
	db.SetMaxIdleConns(options.MaxIdleConns)
	db.SetConnMaxLifetime(options.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, options.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &IngestError{Op: "connect", Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	return &PostgresDestination{
		db:      db,
		options: *options,
		created: make(map[string]bool),
	}, nil
}

// Merge upserts records into table keyed by the key field.
func (d *PostgresDestination) Merge(ctx context.Context, table string, key string, records []core.Record) (MergeStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, skipped, err := prepareRows(records, key, time.Now().UTC())
	stats := MergeStats{Skipped: skipped}
	if err != nil {
		return stats, &IngestError{Op: "encode", Resource: table, Err: err}
	}
	if len(rows) == 0 {
		return stats, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.options.QueryTimeout)
	defer cancel()

	if !d.created[table] {
		if _, err := d.db.ExecContext(ctx, createTableSQL(table)); err != nil {
			return stats, &IngestError{Op: "create_table", Resource: table, Err: err}
		}
		d.created[table] = true
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, &IngestError{Op: "begin", Resource: table, Err: err}
	}
	stmt, err := tx.PrepareContext(ctx, upsertSQL(table))
	if err != nil {
		tx.Rollback()
		return stats, &IngestError{Op: "prepare", Resource: table, Err: err}
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ID, row.Payload, row.LoadedAt); err != nil {
			tx.Rollback()
			return stats, &IngestError{Op: "merge", Resource: table, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return stats, &IngestError{Op: "commit", Resource: table, Err: err}
	}

	stats.Upserted = len(rows)
	return stats, nil
}

// Close closes the connection pool.
func (d *PostgresDestination) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, payload JSONB NOT NULL, loaded_at TIMESTAMPTZ NOT NULL)",
		quoteIdentifier(table))
}

func upsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (id, payload, loaded_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, loaded_at = EXCLUDED.loaded_at",
		quoteIdentifier(table))
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
