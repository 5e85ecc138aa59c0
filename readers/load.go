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

package readers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aaronlmathis/tabload/core"
)

// Package readers provides the input side of Tabload: local file loading with format
// detection, and the paginated HTTP reader used by API ingestion.

// DetectFormat maps a file extension (case-insensitive) to a supported format.
func DetectFormat(path string) (core.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return core.FormatCSV, nil
	case ".xml":
		return core.FormatXML, nil
	case ".json":
		return core.FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported file type: %q", ext)
	}
}

// Load reads and parses the file at path according to its extension.
//
// Every failure is returned as a *core.StageError in the load stage:
// KindUnsupportedFormat for unknown extensions, KindFileAccess when the file cannot be
// opened, and KindMalformedInput when the content does not parse.
func Load(ctx context.Context, path string) (*core.Document, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, core.NewStageError(core.StageLoad, core.KindUnsupportedFormat, "detect_format", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, core.NewStageError(core.StageLoad, core.KindFileAccess, "stat", err)
	}
	if info.IsDir() {
		return nil, core.NewStageError(core.StageLoad, core.KindFileAccess, "stat", fmt.Errorf("%s is a directory", path))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, core.NewStageError(core.StageLoad, core.KindFileAccess, "open", err)
	}

	doc := &core.Document{Path: path, Format: format}

	switch format {
	case core.FormatCSV:
		records, headers, err := ReadAllCSV(ctx, file)
		if err != nil {
			return nil, core.NewStageError(core.StageLoad, core.KindMalformedInput, "parse_csv", err)
		}
		doc.Value = records
		doc.Columns = headers
	case core.FormatXML:
		defer file.Close()
		m, err := ReadXML(file)
		if err != nil {
			return nil, core.NewStageError(core.StageLoad, core.KindMalformedInput, "parse_xml", err)
		}
		doc.Value = m
	case core.FormatJSON:
		defer file.Close()
		v, err := ReadJSON(file)
		if err != nil {
			return nil, core.NewStageError(core.StageLoad, core.KindMalformedInput, "parse_json", err)
		}
		doc.Value = v
	}

	return doc, nil
}
