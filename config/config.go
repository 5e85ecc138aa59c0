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

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/aaronlmathis/tabload/core"
	"github.com/aaronlmathis/tabload/filter"
	"github.com/aaronlmathis/tabload/ingest"
	"github.com/aaronlmathis/tabload/readers"
	"github.com/aaronlmathis/tabload/writers"
)

// Package config reads Tabload's settings from the environment.

const (
	EnvironmentLocal = "local"

	DefaultEndpointURL  = "http://localhost:4566"
	DefaultFileLocation = "50-years/src/data/Cancer Data12A.csv"
	DefaultBucket       = "local-bucket"
	DefaultRegion       = "eu-west-2"

	// Credentials accepted by the local S3 emulator.
	localAccessKeyID     = "xxx"
	localSecretAccessKey = "xxx"
)

// Destination names for ingestion.
const (
	DestinationSQLite   = "sqlite"
	DestinationPostgres = "postgres"
	DestinationMongo    = "mongo"
)

type (
	Config struct {
		Environment string
		Storage
		Input
		Filter
		Log
		Ingest
	}

	Storage struct {
		EndpointURL string
		Bucket      string
		Key         string // Object key; derived from the input path when empty
		Region      string
	}
	Input struct {
		FileLocation string
	}
	Filter struct {
		Column string
		Value  string // Parsed like a CSV cell: "1" is the integer 1
	}
	Log struct {
		Level  string
		Format string
	}
	Ingest struct {
		Enabled     bool
		BaseURL     string
		AccessToken string
		Resources   []string
		PageSize    int
		MaxPages    int
		Dataset     string
		Destination string // sqlite, postgres or mongo
		DSN         string // SQLite path, PostgreSQL DSN or MongoDB URI
		Database    string // MongoDB database
		Strategy    string // fail_fast, skip or collect
	}
)

// NewConfig reads the configuration from environment variables.
func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("environment", EnvironmentLocal)
	v.SetDefault("endpoint_url", DefaultEndpointURL)
	v.SetDefault("file_location", DefaultFileLocation)
	v.SetDefault("s3_bucket", DefaultBucket)
	v.SetDefault("s3_key", "")
	v.SetDefault("aws_region", DefaultRegion)
	v.SetDefault("filter_column", filter.DefaultColumn)
	v.SetDefault("filter_value", fmt.Sprint(filter.DefaultValue))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Ingestion defaults
	v.SetDefault("ingest_enabled", false)
	v.SetDefault("ingest_base_url", ingest.DefaultBaseURL)
	v.SetDefault("ingest_access_token", "")
	v.SetDefault("ingest_resources", "posts")
	v.SetDefault("ingest_page_size", ingest.DefaultPageSize)
	v.SetDefault("ingest_max_pages", 0)
	v.SetDefault("ingest_dataset", ingest.DefaultDataset)
	v.SetDefault("ingest_destination", DestinationSQLite)
	v.SetDefault("ingest_dsn", "tabload.db")
	v.SetDefault("ingest_database", "tabload")
	v.SetDefault("ingest_strategy", "fail_fast")

	return &Config{
		Environment: v.GetString("ENVIRONMENT"),
		Storage: Storage{
			EndpointURL: v.GetString("ENDPOINT_URL"),
			Bucket:      v.GetString("S3_BUCKET"),
			Key:         v.GetString("S3_KEY"),
			Region:      v.GetString("AWS_REGION"),
		},
		Input: Input{
			FileLocation: v.GetString("FILE_LOCATION"),
		},
		Filter: Filter{
			Column: v.GetString("FILTER_COLUMN"),
			Value:  v.GetString("FILTER_VALUE"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Ingest: Ingest{
			Enabled:     v.GetBool("INGEST_ENABLED"),
			BaseURL:     v.GetString("INGEST_BASE_URL"),
			AccessToken: v.GetString("INGEST_ACCESS_TOKEN"),
			Resources:   splitList(v.GetString("INGEST_RESOURCES")),
			PageSize:    v.GetInt("INGEST_PAGE_SIZE"),
			MaxPages:    v.GetInt("INGEST_MAX_PAGES"),
			Dataset:     v.GetString("INGEST_DATASET"),
			Destination: v.GetString("INGEST_DESTINATION"),
			DSN:         v.GetString("INGEST_DSN"),
			Database:    v.GetString("INGEST_DATABASE"),
			Strategy:    v.GetString("INGEST_STRATEGY"),
		},
	}
}

// IsLocal reports whether the local S3 emulator profile applies.
func (c *Config) IsLocal() bool {
	return strings.EqualFold(c.Environment, EnvironmentLocal)
}

// Validate checks the settings the file pipeline needs.
func (c *Config) Validate() error {
	if c.FileLocation == "" {
		return configError(fmt.Errorf("FILE_LOCATION is required"))
	}
	if c.Bucket == "" {
		return configError(fmt.Errorf("S3_BUCKET is required"))
	}
	if c.Filter.Column == "" {
		return configError(fmt.Errorf("FILTER_COLUMN must not be empty"))
	}
	if c.IsLocal() && c.EndpointURL == "" {
		return configError(fmt.Errorf("ENDPOINT_URL is required in the local environment"))
	}
	return nil
}

// Predicate returns the configured row predicate.
func (c *Config) Predicate() filter.Predicate {
	return filter.Predicate{Column: c.Filter.Column, Value: readers.ParseScalar(c.Filter.Value)}
}

// ObjectKey returns S3_KEY, or the key derived from the input path.
func (c *Config) ObjectKey() string {
	if c.Key != "" {
		return c.Key
	}
	return writers.ObjectKey(c.FileLocation)
}

// S3Options returns the client options for the environment: the emulator endpoint with
// path-style addressing and placeholder credentials when local, the default AWS chain otherwise.
func (c *Config) S3Options() []writers.S3ClientOption {
	opts := []writers.S3ClientOption{writers.WithS3Region(c.Region)}
	if c.IsLocal() {
		opts = append(opts,
			writers.WithS3Endpoint(c.EndpointURL),
			writers.WithS3PathStyle(true),
			writers.WithS3StaticCredentials(localAccessKeyID, localSecretAccessKey),
		)
	}
	return opts
}

// IngestEnabled reports whether the run command should also ingest. The local
// environment never does.
func (c *Config) IngestEnabled() bool {
	return c.Ingest.Enabled && !c.IsLocal()
}

// IngestConfig converts the ingestion settings.
func (c *Config) IngestConfig() (ingest.Config, error) {
	strategy, err := core.ParseErrorStrategy(c.Ingest.Strategy)
	if err != nil {
		return ingest.Config{}, configError(err)
	}
	cfg := ingest.Config{
		BaseURL:     c.Ingest.BaseURL,
		AccessToken: c.Ingest.AccessToken,
		Resources:   c.Ingest.Resources,
		PrimaryKey:  ingest.DefaultPrimaryKey,
		PageSize:    c.Ingest.PageSize,
		MaxPages:    c.Ingest.MaxPages,
		Dataset:     c.Ingest.Dataset,
		Strategy:    strategy,
	}
	if err := cfg.Validate(); err != nil {
		return ingest.Config{}, configError(err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func configError(err error) error {
	return core.NewStageError(core.StageConfig, core.KindConfig, "config", err)
}
