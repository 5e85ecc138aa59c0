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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aaronlmathis/tabload/core"
	"github.com/aaronlmathis/tabload/readers"
)

// PageSource yields pages of records and io.EOF once exhausted. *readers.HTTPReader satisfies it.
type PageSource interface {
	NextPage(ctx context.Context) ([]core.Record, error)
}

// SourceFactory opens the page source for one resource.
type SourceFactory func(resource string) (PageSource, error)

// HTTPSourceFactory returns a factory of page-paginated HTTP readers for cfg.
// Pages are requested with "page" and "per_page" query parameters.
func HTTPSourceFactory(cfg Config, extra ...readers.ReaderOptionHTTP) SourceFactory {
	return func(resource string) (PageSource, error) {
		opts := []readers.ReaderOptionHTTP{
			readers.WithHTTPPagination(&readers.PaginationConfig{
				Type:       readers.PaginationPage,
				LimitParam: "per_page",
				PageParam:  "page",
				PageSize:   cfg.PageSize,
				MaxPages:   cfg.MaxPages,
			}),
		}
		if cfg.AccessToken != "" {
			opts = append(opts, readers.WithHTTPBearerToken(cfg.AccessToken))
		}
		opts = append(opts, extra...)
		return readers.NewHTTPReader(cfg.ResourceURL(resource), opts...)
	}
}

// ResourceReport summarizes the ingestion of one resource.
type ResourceReport struct {
	Resource string
	Table    string
	Pages    int
	Records  int
	Upserted int
	Skipped  int
	Duration time.Duration
	Err      error
}

// Report summarizes an ingestion run.
type Report struct {
	Resources []ResourceReport
	Errors    []error
}

// Upserted returns the total number of rows written across resources.
func (r *Report) Upserted() int {
	n := 0
	for _, rr := range r.Resources {
		n += rr.Upserted
	}
	return n
}

// Run pulls every configured resource from its source and merges the records into dest.
//
// A resource ends at io.EOF, at MaxPages, or at the first page that contributes no key
// not already seen, which covers APIs that ignore the paging parameters.
// A failing resource stops the run under core.FailFast. Under core.SkipErrors the run
// continues and returns nil; under core.CollectErrors it continues and returns the joined
// failures. cfg.Handler, when set, can stop the run by returning an error.
func Run(ctx context.Context, cfg Config, newSource SourceFactory, dest Destination, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	report := &Report{}

	if err := cfg.Validate(); err != nil {
		return report, core.NewStageError(core.StageConfig, core.KindConfig, "ingest_config", err)
	}
	if newSource == nil || dest == nil {
		return report, core.NewStageError(core.StageConfig, core.KindConfig, "ingest_config",
			fmt.Errorf("a source factory and a destination are required"))
	}

	for _, resource := range cfg.Resources {
		rr, err := ingestResource(ctx, cfg, resource, newSource, dest, logger)
		report.Resources = append(report.Resources, rr)
		if err == nil {
			logger.Info("resource ingested", "stage", core.StageIngest, "resource", resource, "table", rr.Table,
				"pages", rr.Pages, "records", rr.Records, "upserted", rr.Upserted, "skipped", rr.Skipped)
			continue
		}

		logger.Error("resource failed", "stage", core.StageIngest, "resource", resource,
			"kind", core.KindOf(err), "error", err)
		if stop := handleError(ctx, cfg, resource, err); stop != nil {
			return report, stop
		}
		report.Errors = append(report.Errors, err)
	}

	if cfg.Strategy == core.CollectErrors && len(report.Errors) > 0 {
		return report, errors.Join(report.Errors...)
	}
	return report, nil
}

func handleError(ctx context.Context, cfg Config, resource string, err error) error {
	switch cfg.Strategy {
	case core.SkipErrors, core.CollectErrors:
		if cfg.Handler != nil {
			return cfg.Handler.HandleError(ctx, resource, err)
		}
		return nil
	default:
		return err
	}
}

func ingestResource(ctx context.Context, cfg Config, resource string, newSource SourceFactory, dest Destination, logger *slog.Logger) (ResourceReport, error) {
	start := time.Now()
	rr := ResourceReport{Resource: resource, Table: TableName(cfg.Dataset, resource)}

	fail := func(kind core.ErrorKind, op string, err error) (ResourceReport, error) {
		wrapped := core.NewStageError(core.StageIngest, kind, op, &IngestError{Op: op, Resource: resource, Err: err})
		rr.Err = wrapped
		rr.Duration = time.Since(start)
		return rr, wrapped
	}

	src, err := newSource(resource)
	if err != nil {
		return fail(core.KindConfig, "open_source", err)
	}

	seen := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return fail(core.KindNetwork, "fetch", err)
		}

		records, err := src.NextPage(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(ClassifySourceError(err), "fetch", err)
		}

		fresh, keyless := 0, 0
		for _, r := range records {
			id, ok := KeyString(r[cfg.PrimaryKey])
			if !ok {
				keyless++
				continue
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				fresh++
			}
		}
		rr.Pages++
		rr.Records += len(records)

		if fresh == 0 {
			rr.Skipped += keyless
			logger.Debug("page added no new keys", "stage", core.StageIngest, "resource", resource, "page", rr.Pages)
			break
		}

		stats, err := dest.Merge(ctx, rr.Table, cfg.PrimaryKey, records)
		rr.Upserted += stats.Upserted
		rr.Skipped += stats.Skipped
		if err != nil {
			return fail(core.KindService, "merge", err)
		}
		logger.Debug("page merged", "stage", core.StageIngest, "resource", resource, "page", rr.Pages,
			"records", len(records), "upserted", stats.Upserted)
	}

	rr.Duration = time.Since(start)
	return rr, nil
}

// ClassifySourceError maps an HTTP source error onto the error taxonomy.
func ClassifySourceError(err error) core.ErrorKind {
	var httpErr *readers.HTTPReaderError
	if !errors.As(err, &httpErr) {
		return core.KindService
	}
	switch {
	case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
		return core.KindPermission
	case httpErr.StatusCode == http.StatusNotFound:
		return core.KindNotFound
	case httpErr.StatusCode != 0:
		return core.KindService
	case httpErr.Op == "parse":
		return core.KindMalformedInput
	default:
		return core.KindNetwork
	}
}
