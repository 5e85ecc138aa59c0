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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tabload"
	"github.com/aaronlmathis/tabload/config"
	"github.com/aaronlmathis/tabload/core"
	"github.com/aaronlmathis/tabload/ingest"
	"github.com/aaronlmathis/tabload/logging"
	"github.com/aaronlmathis/tabload/writers"
)

// Package main provides the tabload command line.

// Exit codes
const (
	ExitSuccess     = 0
	ExitLoadError   = 1
	ExitFilterError = 2
	ExitSinkError   = 3
	ExitIngestError = 4
	ExitConfigError = 5
)

var (
	// Build information (set via ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli holds the flag values and output streams of one invocation.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags
	verbose bool
	quiet   bool

	// Run command flags
	file         string
	bucket       string
	key          string
	filterColumn string
	filterValue  string
	dryRun       bool
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "✗ %v\n", err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// exitCodeFor maps the failing stage to an exit code. Errors without a stage, such as
// flag parsing errors, count as configuration failures.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch core.StageOf(err) {
	case core.StageLoad:
		return ExitLoadError
	case core.StageFilter:
		return ExitFilterError
	case core.StageSink:
		return ExitSinkError
	case core.StageIngest:
		return ExitIngestError
	default:
		return ExitConfigError
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tabload",
		Short: "Tabload - load a CSV, XML or JSON file, filter it and store it in S3",
		Long: `Tabload reads a local .csv, .xml or .json file, normalizes it into a table,
keeps the rows where a column equals a value, and uploads the result as CSV to S3.

Settings come from environment variables (ENVIRONMENT, ENDPOINT_URL, FILE_LOCATION,
S3_BUCKET, S3_KEY, AWS_REGION, FILTER_COLUMN, FILTER_VALUE, LOG_LEVEL, LOG_FORMAT, INGEST_*);
flags override them.

Examples:
  # Run with the environment configuration
  tabload run

  # Filter a JSON file and print the CSV instead of uploading it
  tabload run --file data/patients.json --filter-column state --filter-value CA --dry-run

  # Pull the configured REST resources into the ingest database
  tabload ingest`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVarP(&c.quiet, "quiet", "q", false, "Only log errors")

	run := &cobra.Command{
		Use:   "run",
		Short: "Load, filter and upload one file",
		Long: `Load the input file, keep the rows matching the filter and upload them as CSV.

Exit codes:
  0 - Success, including when no row matched
  1 - The file could not be loaded
  2 - The data could not be normalized or filtered
  3 - The CSV could not be encoded or uploaded
  4 - Ingestion failed (only when INGEST_ENABLED=true outside the local environment)
  5 - Invalid configuration`,
		Args: cobra.NoArgs,
		RunE: c.runPipeline,
	}
	run.Flags().StringVar(&c.file, "file", "", "Input file (overrides FILE_LOCATION)")
	run.Flags().StringVar(&c.bucket, "bucket", "", "Destination bucket (overrides S3_BUCKET)")
	run.Flags().StringVar(&c.key, "key", "", "Destination key (overrides S3_KEY)")
	run.Flags().StringVar(&c.filterColumn, "filter-column", "", "Column to test (overrides FILTER_COLUMN)")
	run.Flags().StringVar(&c.filterValue, "filter-value", "", "Value to keep (overrides FILTER_VALUE)")
	run.Flags().BoolVar(&c.dryRun, "dry-run", false, "Write the CSV to stdout instead of uploading it")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Pull REST API resources into the ingest database",
		Long: `Pull every INGEST_RESOURCES endpoint of INGEST_BASE_URL page by page and merge
the records, keyed by id, into INGEST_DESTINATION (sqlite, postgres or mongo).`,
		Args: cobra.NoArgs,
		RunE: c.runIngest,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version, commit hash, and build date information.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(c.stdout, "Version: %s\n", version)
			fmt.Fprintf(c.stdout, "Commit: %s\n", commit)
			fmt.Fprintf(c.stdout, "Build Date: %s\n", buildDate)
		},
	}

	root.AddCommand(run, ingestCmd, versionCmd)
	return root
}

func (c *cli) logger(cfg *config.Config) *slog.Logger {
	level := logging.LevelForFlags(logging.ParseLevel(cfg.Log.Level), c.verbose, c.quiet)
	return logging.New(level, cfg.Log.Format, c.stderr)
}

// applyRunFlags copies the flags that were set onto cfg.
func (c *cli) applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("file") {
		cfg.FileLocation = c.file
	}
	if flags.Changed("bucket") {
		cfg.Bucket = c.bucket
	}
	if flags.Changed("key") {
		cfg.Key = c.key
	}
	if flags.Changed("filter-column") {
		cfg.Filter.Column = c.filterColumn
	}
	if flags.Changed("filter-value") {
		cfg.Filter.Value = c.filterValue
	}
}

func (c *cli) runPipeline(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.NewConfig()
	c.applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := c.logger(cfg)

	builder := tabload.NewPipeline().
		From(cfg.FileLocation).
		Where(cfg.Predicate()).
		WithLogger(logger)

	if c.dryRun {
		builder.WithDryRun(c.stdout).To(nil, cfg.Bucket, cfg.ObjectKey())
	} else {
		client, err := writers.NewS3Client(ctx, cfg.S3Options()...)
		if err != nil {
			return err
		}
		builder.To(tabload.S3Uploader(client), cfg.Bucket, cfg.ObjectKey())
	}

	pipeline, err := builder.Build()
	if err != nil {
		return err
	}

	logger.Debug("starting pipeline", "environment", cfg.Environment, "file", cfg.FileLocation,
		"bucket", cfg.Bucket, "key", cfg.ObjectKey(), "dry_run", c.dryRun)

	report, err := pipeline.Execute(ctx)
	if err != nil {
		return err
	}
	logger.Info("pipeline finished", "rows_loaded", report.RowsLoaded, "rows_written", report.RowsFiltered,
		"bytes", report.BytesEncoded, "dry_run", report.DryRun)

	if cfg.IngestEnabled() {
		return c.ingest(ctx, cfg, logger)
	}
	return nil
}

func (c *cli) runIngest(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	return c.ingest(cmd.Context(), cfg, c.logger(cfg))
}

func (c *cli) ingest(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ic, err := cfg.IngestConfig()
	if err != nil {
		return err
	}
	ic.Handler = core.ErrorHandlerFunc(func(ctx context.Context, resource string, err error) error {
		logger.Warn("continuing after resource failure", "stage", core.StageIngest, "resource", resource)
		return nil
	})

	dest, err := openDestination(ctx, cfg)
	if err != nil {
		return err
	}
	defer dest.Close()

	report, err := ingest.Run(ctx, ic, ingest.HTTPSourceFactory(ic), dest, logger)
	if err != nil {
		return err
	}
	logger.Info("ingest finished", "resources", len(report.Resources), "upserted", report.Upserted(),
		"failed", len(report.Errors))
	return nil
}

// openDestination opens the configured ingest destination.
func openDestination(ctx context.Context, cfg *config.Config) (ingest.Destination, error) {
	var (
		dest ingest.Destination
		err  error
	)
	switch cfg.Ingest.Destination {
	case config.DestinationSQLite, "":
		dest, err = ingest.NewSQLiteDestination(ingest.WithSQLitePath(cfg.Ingest.DSN))
	case config.DestinationPostgres:
		dest, err = ingest.NewPostgresDestination(ctx, ingest.WithPostgresDSN(cfg.Ingest.DSN))
	case config.DestinationMongo:
		dest, err = ingest.NewMongoDestination(ctx,
			ingest.WithMongoURI(cfg.Ingest.DSN),
			ingest.WithMongoDatabase(cfg.Ingest.Database))
	default:
		return nil, core.NewStageError(core.StageConfig, core.KindConfig, "ingest_destination",
			fmt.Errorf("unknown destination %q", cfg.Ingest.Destination))
	}
	if err != nil {
		var ingestErr *ingest.IngestError
		if errors.As(err, &ingestErr) && ingestErr.Op == "validate" {
			return nil, core.NewStageError(core.StageConfig, core.KindConfig, "ingest_destination", err)
		}
		return nil, core.NewStageError(core.StageIngest, core.KindNetwork, "ingest_destination", err)
	}
	return dest, nil
}
