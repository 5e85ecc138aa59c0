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
	"errors"
	"fmt"
)

// Package core defines the error handling types for the Tabload library.
//
// This file contains the stage error taxonomy, error strategies, and function adapters.

// Stage names a step of the pipeline.
type Stage string

const (
	StageLoad   Stage = "load"
	StageFilter Stage = "filter"
	StageSink   Stage = "sink"
	StageIngest Stage = "ingest"
	StageConfig Stage = "config"
)

// ErrorKind classifies why a stage failed.
type ErrorKind string

const (
	// KindUnsupportedFormat is an input extension other than .csv, .xml or .json.
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	// KindFileAccess is a missing or unreadable input file.
	KindFileAccess ErrorKind = "file_access"
	// KindMalformedInput is content that does not parse in its declared format.
	KindMalformedInput ErrorKind = "malformed_input"
	// KindShape is a document that cannot be normalized into a table.
	KindShape ErrorKind = "unexpected_shape"
	// KindMissingColumn is a filter column absent from the table.
	KindMissingColumn ErrorKind = "missing_column"
	// KindSerialization is a cell value that cannot be encoded.
	KindSerialization ErrorKind = "serialization"
	// KindPermission is a credential or authorization failure at a remote service.
	KindPermission ErrorKind = "permission"
	// KindNotFound is a missing remote container (bucket, table, endpoint).
	KindNotFound ErrorKind = "not_found"
	// KindNetwork is a transport failure before the service answered.
	KindNetwork ErrorKind = "network"
	// KindService is any other failure reported by a remote service.
	KindService ErrorKind = "service"
	// KindConfig is invalid or incomplete configuration.
	KindConfig ErrorKind = "config"
)

// StageError is the failure variant of every stage result.
// A nil error together with the stage's value is the success variant.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Op    string
	Err   error
}

func (e *StageError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Stage, e.Op, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError builds a StageError.
func NewStageError(stage Stage, kind ErrorKind, op string, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first StageError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// StageOf returns the stage of the first StageError in err's chain, or "" if there is none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ErrorHandler defines how errors are handled during multi-step processing.
// Custom error handlers can be used to log, collect, or transform errors.
type ErrorHandler interface {
	// HandleError processes an error that occurred while processing the named item.
	// Returning a non-nil error will stop processing; returning nil will continue.
	HandleError(ctx context.Context, item string, err error) error
}

// ErrorStrategy defines how to handle per-item errors.
type ErrorStrategy int

const (
	// FailFast stops processing on the first error encountered.
	FailFast ErrorStrategy = iota
	// SkipErrors continues processing, skipping failed items.
	SkipErrors
	// CollectErrors continues processing, collecting all errors for later inspection.
	CollectErrors
)

// ParseErrorStrategy maps "fail_fast", "skip" and "collect" to an ErrorStrategy.
func ParseErrorStrategy(s string) (ErrorStrategy, error) {
	switch s {
	case "", "fail_fast", "failfast":
		return FailFast, nil
	case "skip", "skip_errors":
		return SkipErrors, nil
	case "collect", "collect_errors":
		return CollectErrors, nil
	default:
		return FailFast, fmt.Errorf("unknown error strategy %q", s)
	}
}

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
// Allows ordinary functions to be used as error handlers.
type ErrorHandlerFunc func(ctx context.Context, item string, err error) error

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, item string, err error) error {
	return f(ctx, item, err)
}
