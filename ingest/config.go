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
	"fmt"
	"strings"

	"github.com/aaronlmathis/tabload/core"
)

// Package ingest pulls records from a paginated REST API and merge-writes them, keyed by
// a primary key field, into a database table per resource.
//
// Ingestion is separate from the file pipeline and only runs when asked for explicitly.

const (
	DefaultBaseURL    = "https://jsonplaceholder.typicode.com/"
	DefaultPrimaryKey = "id"
	DefaultPageSize   = 100
	DefaultDataset    = "patents"
)

// Config describes one ingestion run.
type Config struct {
	BaseURL     string             // API root; resources are resolved against it
	AccessToken string             // Sent as a bearer token when set
	Resources   []string           // Endpoints to pull, e.g. "posts"
	PrimaryKey  string             // Field that identifies a record
	PageSize    int                // Records requested per page
	MaxPages    int                // Upper bound on pages per resource (0 = unlimited)
	Dataset     string             // Prefix of destination table names
	Strategy    core.ErrorStrategy // What a failing resource does to the run
	Handler     core.ErrorHandler  // Optional hook for resource failures
}

// DefaultConfig returns the configuration of the sample API.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Resources:  []string{"posts"},
		PrimaryKey: DefaultPrimaryKey,
		PageSize:   DefaultPageSize,
		Dataset:    DefaultDataset,
		Strategy:   core.FailFast,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	if len(c.Resources) == 0 {
		return fmt.Errorf("at least one resource is required")
	}
	for _, r := range c.Resources {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("resource names must not be empty")
		}
	}
	if c.PrimaryKey == "" {
		return fmt.Errorf("primary key is required")
	}
	if c.PageSize < 0 || c.MaxPages < 0 {
		return fmt.Errorf("page size and max pages must not be negative")
	}
	if c.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}
	return nil
}

// ResourceURL joins the base URL and a resource name.
func (c Config) ResourceURL(resource string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(resource, "/")
}

// TableName returns the destination table for a resource, "<dataset>_<resource>", with every
// character outside [A-Za-z0-9_] replaced by an underscore.
func TableName(dataset, resource string) string {
	return sanitizeIdentifier(dataset + "_" + resource)
}

func sanitizeIdentifier(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
