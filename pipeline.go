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

package tabload

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aaronlmathis/tabload/core"
	"github.com/aaronlmathis/tabload/filter"
	"github.com/aaronlmathis/tabload/readers"
	"github.com/aaronlmathis/tabload/transform"
	"github.com/aaronlmathis/tabload/writers"
)

// Package tabload loads a local CSV, XML or JSON file, keeps the rows matching a column
// predicate and stores them as a CSV object in S3.
//
// The stages run strictly in sequence: Loader, then Normalizer and Filter, then Sink.
// Every stage either returns its value or a *core.StageError naming the stage and kind of failure.
//
// Example usage:
//
//   client, err := writers.NewS3Client(ctx, writers.WithS3Region("eu-west-2"))
//   if err != nil { log.Fatal(err) }
//   pipeline, err := tabload.NewPipeline().
//       From("data/cancer.csv").
//       Where(filter.DefaultPredicate()).
//       To(tabload.S3Uploader(client), "local-bucket", "").
//       Build()
//   if err != nil { log.Fatal(err) }
//   report, err := pipeline.Execute(ctx)

// Uploader stores a table at bucket/key.
type Uploader func(ctx context.Context, table *core.Table, bucket, key string) (*writers.UploadResult, error)

// S3Uploader returns an Uploader that writes through putter.
func S3Uploader(putter writers.ObjectPutter) Uploader {
	return func(ctx context.Context, table *core.Table, bucket, key string) (*writers.UploadResult, error) {
		return writers.UploadTable(ctx, putter, table, bucket, key)
	}
}

// PipelineBuilder provides a fluent API for constructing pipelines.
// Use NewPipeline() to create a new builder, then chain From, Where, To and configuration methods.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder with the default predicate and a discarding logger.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			predicate: filter.DefaultPredicate(),
			logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}
}

// From sets the input file. The format is taken from its extension.
func (pb *PipelineBuilder) From(path string) *PipelineBuilder {
	pb.pipeline.path = path
	return pb
}

// Where sets the row predicate.
func (pb *PipelineBuilder) Where(predicate filter.Predicate) *PipelineBuilder {
	pb.pipeline.predicate = predicate
	return pb
}

// To sets the uploader and destination. An empty key is derived from the input path.
func (pb *PipelineBuilder) To(uploader Uploader, bucket, key string) *PipelineBuilder {
	pb.pipeline.uploader = uploader
	pb.pipeline.bucket = bucket
	pb.pipeline.key = key
	return pb
}

// WithLogger sets the logger used for stage progress.
func (pb *PipelineBuilder) WithLogger(logger *slog.Logger) *PipelineBuilder {
	if logger != nil {
		pb.pipeline.logger = logger
	}
	return pb
}

// WithDryRun makes Execute write the CSV to w instead of uploading it.
func (pb *PipelineBuilder) WithDryRun(w io.Writer) *PipelineBuilder {
	pb.pipeline.dryRun = w
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	p := pb.pipeline
	if p.path == "" {
		return nil, configError(fmt.Errorf("pipeline requires an input file"))
	}
	if p.dryRun == nil {
		if p.uploader == nil {
			return nil, configError(fmt.Errorf("pipeline requires an uploader"))
		}
		if p.bucket == "" {
			return nil, configError(fmt.Errorf("pipeline requires a bucket"))
		}
	}
	if p.key == "" {
		p.key = writers.ObjectKey(p.path)
	}
	return p, nil
}

// Report summarizes one pipeline run.
type Report struct {
	Source       string
	Format       core.Format
	Columns      []string
	RowsLoaded   int
	RowsFiltered int
	Bucket       string
	Key          string
	BytesEncoded int
	DryRun       bool
	Upload       *writers.UploadResult
}

// Pipeline runs the load, filter and upload stages once.
type Pipeline struct {
	path      string
	predicate filter.Predicate
	uploader  Uploader
	bucket    string
	key       string
	dryRun    io.Writer
	logger    *slog.Logger
}

// Execute runs the pipeline.
//
// The returned report is never nil and holds whatever the completed stages produced.
// A filter that matches nothing is not a failure: RowsFiltered is 0 and the header-only CSV
// is still uploaded. The first failing stage stops the run and nothing is uploaded.
func (p *Pipeline) Execute(ctx context.Context) (*Report, error) {
	report := &Report{Source: p.path, Bucket: p.bucket, Key: p.key, DryRun: p.dryRun != nil}

	doc, err := readers.Load(ctx, p.path)
	if err != nil {
		p.logger.Error("load failed", "stage", core.StageLoad, "file", p.path, "error", err)
		return report, err
	}
	report.Format = doc.Format

	table, err := transform.Normalize(doc)
	if err != nil {
		p.logger.Error("normalize failed", "stage", core.StageFilter, "file", p.path, "error", err)
		return report, err
	}
	report.RowsLoaded = table.Len()
	report.Columns = table.Columns
	p.logger.Info("loaded", "stage", core.StageLoad, "file", p.path, "format", doc.Format,
		"rows", table.Len(), "columns", len(table.Columns))

	filtered, err := filter.Apply(ctx, table, p.predicate)
	if err != nil {
		p.logger.Error("filter failed", "stage", core.StageFilter, "predicate", p.predicate.String(), "error", err)
		return report, err
	}
	report.RowsFiltered = filtered.Len()
	p.logger.Info("filtered", "stage", core.StageFilter, "predicate", p.predicate.String(),
		"rows_in", table.Len(), "rows_out", filtered.Len())
	if filtered.Len() == 0 {
		p.logger.Warn("no rows matched", "stage", core.StageFilter, "predicate", p.predicate.String())
	}

	if p.dryRun != nil {
		return report, p.writeDryRun(ctx, filtered, report)
	}

	result, err := p.uploader(ctx, filtered, p.bucket, p.key)
	if err != nil {
		p.logger.Error("upload failed", "stage", core.StageSink, "bucket", p.bucket, "key", p.key,
			"kind", core.KindOf(err), "error", err)
		return report, err
	}
	report.Upload = result
	if result != nil {
		report.BytesEncoded = int(result.BytesWritten)
	}
	p.logger.Info("uploaded", "stage", core.StageSink, "bucket", p.bucket, "key", p.key,
		"bytes", report.BytesEncoded)
	return report, nil
}

func (p *Pipeline) writeDryRun(ctx context.Context, table *core.Table, report *Report) error {
	body, err := writers.EncodeCSV(ctx, table)
	if err != nil {
		p.logger.Error("encode failed", "stage", core.StageSink, "error", err)
		return core.NewStageError(core.StageSink, core.KindSerialization, "serialize", err)
	}
	report.BytesEncoded = len(body)
	if _, err := p.dryRun.Write(body); err != nil {
		return core.NewStageError(core.StageSink, core.KindFileAccess, "dry_run", err)
	}
	p.logger.Info("dry run, upload skipped", "stage", core.StageSink, "bucket", p.bucket, "key", p.key,
		"bytes", len(body))
	return nil
}

func configError(err error) error {
	return core.NewStageError(core.StageConfig, core.KindConfig, "build", err)
}
