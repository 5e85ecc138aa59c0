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
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/aaronlmathis/tabload/core"
)

// This file implements the embedded SQLite destination, the default for ingestion runs.

// SQLiteOptions configures the SQLite destination.
type SQLiteOptions struct {
	Path      string // Database file, or ":memory:"
	BatchSize int    // Rows per INSERT statement
	LogLevel  logger.LogLevel
}

// SQLiteOption represents a configuration function for SQLiteOptions.
type SQLiteOption func(*SQLiteOptions)

func WithSQLitePath(path string) SQLiteOption {
	return func(opts *SQLiteOptions) {
		opts.Path = path
	}
}

func WithSQLiteBatchSize(size int) SQLiteOption {
	return func(opts *SQLiteOptions) {
		opts.BatchSize = size
	}
}

func WithSQLiteLogLevel(level logger.LogLevel) SQLiteOption {
	return func(opts *SQLiteOptions) {
		opts.LogLevel = level
	}
}

// SQLiteDestination merges records into SQLite tables through gorm.
type SQLiteDestination struct {
	db       *gorm.DB
	options  SQLiteOptions
	migrated map[string]bool
	mu       sync.Mutex
}

var _ Destination = (*SQLiteDestination)(nil)

// NewSQLiteDestination opens (creating if needed) the SQLite database.
func NewSQLiteDestination(opts ...SQLiteOption) (*SQLiteDestination, error) {
	options := SQLiteOptions{
		Path:      "tabload.db",
		BatchSize: 500,
		LogLevel:  logger.Silent,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Path == "" {
		return nil, &IngestError{Op: "validate", Err: fmt.Errorf("sqlite path is required")}
	}
	if options.BatchSize <= 0 {
		options.BatchSize = 500
	}

	db, err := gorm.Open(sqlite.Open(options.Path), &gorm.Config{
		Logger: logger.Default.LogMode(options.LogLevel),
	})
	if err != nil {
		return nil, &IngestError{Op: "connect", Err: fmt.Errorf("failed to open database: %w", err)}
	}

	return &SQLiteDestination{
		db:       db,
		options:  options,
		migrated: make(map[string]bool),
	}, nil
}

// Merge upserts records into table keyed by the key field.
func (d *SQLiteDestination) Merge(ctx context.Context, table string, key string, records []core.Record) (MergeStats, error) {
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

	if !d.migrated[table] {
		if err := d.db.WithContext(ctx).Table(table).AutoMigrate(&storedRecord{}); err != nil {
			return stats, &IngestError{Op: "migrate", Resource: table, Err: err}
		}
		d.migrated[table] = true
	}

	result := d.db.WithContext(ctx).Table(table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "loaded_at"}),
	}).CreateInBatches(&rows, d.options.BatchSize)
	if result.Error != nil {
		return stats, &IngestError{Op: "merge", Resource: table, Err: result.Error}
	}

	stats.Upserted = len(rows)
	return stats, nil
}

// Count returns the number of rows stored in table.
func (d *SQLiteDestination) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := d.db.WithContext(ctx).Table(table).Count(&n).Error
	return n, err
}

// Payload returns the stored JSON payload for id.
func (d *SQLiteDestination) Payload(ctx context.Context, table, id string) (string, error) {
	var row storedRecord
	if err := d.db.WithContext(ctx).Table(table).Where("id = ?", id).Take(&row).Error; err != nil {
		return "", err
	}
	return row.Payload, nil
}

// Close closes the underlying database.
func (d *SQLiteDestination) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
