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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tabload/core"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no base url", func(c *Config) { c.BaseURL = "" }},
		{"no resources", func(c *Config) { c.Resources = nil }},
		{"blank resource", func(c *Config) { c.Resources = []string{"posts", " "} }},
		{"no key", func(c *Config) { c.PrimaryKey = "" }},
		{"negative page size", func(c *Config) { c.PageSize = -1 }},
		{"no dataset", func(c *Config) { c.Dataset = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_ResourceURL(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts", cfg.ResourceURL("posts"))
	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts", cfg.ResourceURL("/posts"))
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "patents_posts", TableName("patents", "posts"))
	assert.Equal(t, "patents_v1_grants", TableName("patents", "v1/grants"))
	assert.Equal(t, "_2024_posts", TableName("2024", "posts"))
	assert.Equal(t, "a_b_c", TableName("a-b", "c"))
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
		ok   bool
	}{
		{json.Number("42"), "42", true},
		{"abc", "abc", true},
		{"", "", false},
		{7, "7", true},
		{int64(8), "8", true},
		{float64(9), "9", true},
		{true, "true", true},
		{nil, "", false},
		{map[string]interface{}{"x": 1}, "", false},
	}
	for _, tt := range tests {
		got, ok := KeyString(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestPrepareRows(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	rows, skipped, err := prepareRows([]core.Record{
		{"id": json.Number("1"), "name": "x"},
		{"name": "keyless"},
		{"id": json.Number("1"), "name": "y"},
	}, "id", now)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].ID)
	assert.JSONEq(t, `{"id":1,"name":"y"}`, rows[0].Payload)
	assert.Equal(t, now, rows[0].LoadedAt)
}

func TestPostgresDestination_RequiresDSN(t *testing.T) {
	_, err := NewPostgresDestination(context.Background())
	require.Error(t, err)
	var ingestErr *IngestError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, "validate", ingestErr.Op)
}

func TestPostgresSQL(t *testing.T) {
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "patents_posts" (id TEXT PRIMARY KEY, payload JSONB NOT NULL, loaded_at TIMESTAMPTZ NOT NULL)`,
		createTableSQL("patents_posts"))
	assert.Contains(t, upsertSQL("patents_posts"), `INSERT INTO "patents_posts" (id, payload, loaded_at) VALUES ($1, $2, $3)`)
	assert.Contains(t, upsertSQL("patents_posts"), "ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload")
	assert.Equal(t, `"we""ird"`, quoteIdentifier(`we"ird`))
}

func TestPostgresOptions_Defaults(t *testing.T) {
	opts := (&PostgresOptions{}).withDefaults()
	assert.Equal(t, 30*time.Second, opts.QueryTimeout)
	assert.Equal(t, 4, opts.MaxOpenConns)
	assert.Equal(t, 2, opts.MaxIdleConns)
}

func TestMongoDestination_Validation(t *testing.T) {
	_, err := NewMongoDestination(context.Background(), WithMongoDatabase("tabload"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uri is required")

	_, err = NewMongoDestination(context.Background(), WithMongoURI("mongodb://localhost:27017"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database name is required")
}

func TestMongoDocument(t *testing.T) {
	now := time.Now().UTC()
	doc, err := mongoDocument(storedRecord{ID: "1", Payload: `{"id":1,"tags":["a"]}`, LoadedAt: now})
	require.NoError(t, err)
	assert.Equal(t, "1", doc["_id"])
	assert.Equal(t, now, doc["loaded_at"])
	payload := doc["payload"].(map[string]interface{})
	assert.Equal(t, float64(1), payload["id"])
	assert.Equal(t, []interface{}{"a"}, payload["tags"])
}
