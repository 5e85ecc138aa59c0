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

package transform

import (
	"fmt"
	"sort"

	"github.com/aaronlmathis/tabload/core"
)

// Package transform turns parsed documents of any supported shape into rectangular tables.

// Normalize builds a table from a loaded document.
//
// The rules are applied in order:
//  1. a sequence of records becomes one row per record;
//  2. a mapping with exactly one entry whose value is a sequence of records is unwrapped;
//  3. any other mapping is flattened into dotted column names and becomes a single row;
//  4. anything else fails with core.KindShape.
func Normalize(doc *core.Document) (*core.Table, error) {
	if doc == nil {
		return nil, shapeError(fmt.Errorf("no document"))
	}

	switch v := doc.Value.(type) {
	case []core.Record:
		return fromRecords(doc.Columns, v), nil
	case []interface{}:
		records, err := asRecords(v)
		if err != nil {
			return nil, shapeError(err)
		}
		return fromRecords(doc.Columns, records), nil
	case map[string]interface{}:
		if inner, ok := singleEntryRecords(v); ok {
			return fromRecords(nil, inner), nil
		}
		table := core.NewTable()
		table.Append(Flatten(v))
		return table, nil
	default:
		return nil, shapeError(fmt.Errorf("cannot build a table from %T", doc.Value))
	}
}

// Flatten collapses nested mappings into a single record with dotted keys.
// Lists and scalars are kept as cell values.
func Flatten(m map[string]interface{}) core.Record {
	out := make(core.Record)
	flattenInto(out, "", m)
	return out
}

func flattenInto(out core.Record, prefix string, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		if nested, ok := m[k].(map[string]interface{}); ok && len(nested) > 0 {
			flattenInto(out, name, nested)
			continue
		}
		out[name] = m[k]
	}
}

func fromRecords(columns []string, records []core.Record) *core.Table {
	table := core.NewTable(columns...)
	for _, r := range records {
		table.Append(r)
	}
	return table
}

// singleEntryRecords unwraps {"wrapper": [ {...}, {...} ]}.
func singleEntryRecords(m map[string]interface{}) ([]core.Record, bool) {
	if len(m) != 1 {
		return nil, false
	}
	for _, v := range m {
		switch list := v.(type) {
		case []core.Record:
			return list, true
		case []interface{}:
			records, err := asRecords(list)
			if err != nil {
				return nil, false
			}
			return records, true
		}
	}
	return nil, false
}

func asRecords(list []interface{}) ([]core.Record, error) {
	records := make([]core.Record, 0, len(list))
	for i, item := range list {
		switch r := item.(type) {
		case map[string]interface{}:
			records = append(records, core.Record(r))
		case core.Record:
			records = append(records, r)
		default:
			return nil, fmt.Errorf("element %d is %T, not a record", i, item)
		}
	}
	return records, nil
}

func shapeError(err error) error {
	return core.NewStageError(core.StageFilter, core.KindShape, "normalize", err)
}
