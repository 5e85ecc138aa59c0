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
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aaronlmathis/tabload/core"
)

// IngestError wraps ingestion errors with the operation and resource that failed.
type IngestError struct {
	Op       string
	Resource string
	Err      error
}

func (e *IngestError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("ingest %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ingest %s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// MergeStats counts the effect of one Merge call.
type MergeStats struct {
	Upserted int // Rows inserted or replaced
	Skipped  int // Records without a usable key
}

// Destination stores records keyed by a primary key field. Merging a record whose key
// already exists replaces the stored row.
type Destination interface {
	Merge(ctx context.Context, table string, key string, records []core.Record) (MergeStats, error)
	Close() error
}

// storedRecord is the row shape shared by every destination.
type storedRecord struct {
	ID       string    `gorm:"column:id;primaryKey"`
	Payload  string    `gorm:"column:payload;type:text;not null"`
	LoadedAt time.Time `gorm:"column:loaded_at;not null"`
}

// prepareRows turns records into stored rows. Records without a key are counted as skipped;
// a key seen twice keeps the last record.
func prepareRows(records []core.Record, key string, now time.Time) ([]storedRecord, int, error) {
	rows := make([]storedRecord, 0, len(records))
	position := make(map[string]int, len(records))
	skipped := 0

	for _, r := range records {
		id, ok := KeyString(r[key])
		if !ok {
			skipped++
			continue
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return nil, skipped, fmt.Errorf("encode record %s: %w", id, err)
		}
		row := storedRecord{ID: id, Payload: string(payload), LoadedAt: now}
		if i, seen := position[id]; seen {
			rows[i] = row
			continue
		}
		position[id] = len(rows)
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

// KeyString renders a primary key value as text. Empty strings, nil and non-scalar values
// are not usable keys.
func KeyString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
