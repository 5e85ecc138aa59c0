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

package core

import (
	"context"
	"sort"
)

// Package core defines the core types for the Tabload library.
//
// Tabload loads a local CSV, XML or JSON file, normalizes it into a rectangular table,
// filters it with a column predicate and uploads the result to object storage as CSV.
//
// This file contains the record, document and table types shared by every stage.

// Record represents a single data record in the pipeline.
// Each record is a map from field names to values, supporting heterogeneous data.
type Record map[string]interface{}

// Format identifies the on-disk format of a loaded document.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

// Document is the parsed, not yet normalized, content of an input file.
//
// Value holds []Record for CSV, map[string]interface{} for XML and JSON objects,
// []interface{} for JSON arrays, or any other JSON value for scalar roots.
// Columns carries the known field order when the format has one (the CSV header).
type Document struct {
	Path    string
	Format  Format
	Columns []string
	Value   interface{}
}

// Table is the rectangular frame every stage after loading works on.
// Columns is the union of observed field names in first-seen order.
type Table struct {
	Columns []string
	Rows    []Record

	index map[string]struct{}
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	t := &Table{Rows: make([]Record, 0)}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	t.ensureIndex()
	_, ok := t.index[name]
	return ok
}

// Append adds a row. Keys not yet known become new columns, appended in sorted order.
func (t *Table) Append(record Record) {
	t.ensureIndex()

	var unseen []string
	for k := range record {
		if _, ok := t.index[k]; !ok {
			unseen = append(unseen, k)
		}
	}
	sort.Strings(unseen)
	for _, k := range unseen {
		t.addColumn(k)
	}

	t.Rows = append(t.Rows, record)
}

// Empty returns a zero-row table with the same columns.
func (t *Table) Empty() *Table {
	return NewTable(t.Columns...)
}

func (t *Table) addColumn(name string) {
	t.ensureIndex()
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = struct{}{}
	t.Columns = append(t.Columns, name)
}

func (t *Table) ensureIndex() {
	if t.index != nil {
		return
	}
	t.index = make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		t.index[c] = struct{}{}
	}
}

// FilterFunc is a function adapter for the Filter interface.
// Allows ordinary functions to be used as Filters.
type FilterFunc func(ctx context.Context, record Record) (bool, error)

// ShouldInclude implements the Filter interface for FilterFunc.
func (f FilterFunc) ShouldInclude(ctx context.Context, record Record) (bool, error) {
	return f(ctx, record)
}
