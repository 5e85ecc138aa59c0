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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tabload/core"
)

func TestNormalize_RecordSequence(t *testing.T) {
	doc := &core.Document{
		Format:  core.FormatCSV,
		Columns: []string{"b", "a"},
		Value:   []core.Record{{"a": 1, "b": 2}, {"a": 3, "b": 4}},
	}

	table, err := Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, table.Columns)
	assert.Equal(t, 2, table.Len())
}

func TestNormalize_JSONArray(t *testing.T) {
	doc := &core.Document{Value: []interface{}{
		map[string]interface{}{"id": 1},
		map[string]interface{}{"id": 2, "extra": true},
	}}

	table, err := Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "extra"}, table.Columns)
	assert.Equal(t, 2, table.Len())
	assert.Nil(t, table.Rows[0]["extra"])
}

func TestNormalize_UnwrapsSingleEntry(t *testing.T) {
	doc := &core.Document{Value: map[string]interface{}{
		"records": []interface{}{
			map[string]interface{}{"x": 1},
			map[string]interface{}{"y": 2},
			map[string]interface{}{"x": 3, "z": 4},
		},
	}}

	table, err := Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"x", "y", "z"}, table.Columns)
}

func TestNormalize_XMLDocumentFlattens(t *testing.T) {
	// <root><item><id>1</id></item></root>
	doc := &core.Document{Format: core.FormatXML, Value: map[string]interface{}{
		"root": map[string]interface{}{
			"item": map[string]interface{}{"id": "1"},
		},
	}}

	table, err := Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"root.item.id"}, table.Columns)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "1", table.Rows[0]["root.item.id"])
}

func TestNormalize_SingleEntryWithMixedList(t *testing.T) {
	doc := &core.Document{Value: map[string]interface{}{
		"values": []interface{}{1, 2},
	}}

	table, err := Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"values"}, table.Columns)
	assert.Equal(t, []interface{}{1, 2}, table.Rows[0]["values"])
}

func TestNormalize_ShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  *core.Document
	}{
		{"nil document", nil},
		{"scalar root", &core.Document{Value: 42.0}},
		{"string root", &core.Document{Value: "text"}},
		{"array of scalars", &core.Document{Value: []interface{}{1, "two"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Normalize(tt.doc)
			require.Error(t, err)
			assert.Nil(t, table)
			assert.Equal(t, core.KindShape, core.KindOf(err))
			assert.Equal(t, core.StageFilter, core.StageOf(err))
		})
	}
}

func TestFlatten(t *testing.T) {
	got := Flatten(map[string]interface{}{
		"a": map[string]interface{}{
			"b": 1,
			"c": map[string]interface{}{"d": "x"},
		},
		"list":  []interface{}{1},
		"empty": map[string]interface{}{},
	})

	assert.Equal(t, core.Record{
		"a.b":   1,
		"a.c.d": "x",
		"list":  []interface{}{1},
		"empty": map[string]interface{}{},
	}, got)
}
