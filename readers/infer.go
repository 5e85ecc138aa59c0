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
	"strconv"
	"strings"

	"github.com/aaronlmathis/tabload/core"
)

type columnKind int

const (
	kindEmpty columnKind = iota
	kindInt
	kindFloat
	kindBool
	kindString
)

// InferColumnTypes converts the text cells of each column in place.
// A column becomes int when every non-empty cell parses as an integer, float64 when every
// cell parses as a number, bool when every cell is true/false, and stays text otherwise.
func InferColumnTypes(records []core.Record, columns []string) {
	for _, col := range columns {
		kind := inferColumn(records, col)
		if kind == kindString || kind == kindEmpty {
			continue
		}
		for _, r := range records {
			s, ok := r[col].(string)
			if !ok {
				continue
			}
			r[col] = convertCell(strings.TrimSpace(s), kind)
		}
	}
}

// ParseScalar attempts to infer int, float, bool, or fallback to string.
func ParseScalar(value string) interface{} {
	value = strings.TrimSpace(value)

	// Try parsing in common order
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if isBoolText(value) {
		return strings.EqualFold(value, "true")
	}
	return value
}

func inferColumn(records []core.Record, col string) columnKind {
	kind := kindEmpty
	for _, r := range records {
		s, ok := r[col].(string)
		if !ok {
			continue
		}
		k := cellKind(strings.TrimSpace(s))
		kind = widen(kind, k)
		if kind == kindString {
			return kind
		}
	}
	return kind
}

func cellKind(s string) columnKind {
	if _, err := strconv.Atoi(s); err == nil {
		return kindInt
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return kindFloat
	}
	if isBoolText(s) {
		return kindBool
	}
	return kindString
}

// widen merges the kind seen so far with the kind of the next cell.
func widen(current, next columnKind) columnKind {
	switch {
	case current == kindEmpty:
		return next
	case current == next:
		return current
	case (current == kindInt && next == kindFloat) || (current == kindFloat && next == kindInt):
		return kindFloat
	default:
		return kindString
	}
}

func convertCell(s string, kind columnKind) interface{} {
	switch kind {
	case kindInt:
		i, _ := strconv.Atoi(s)
		return i
	case kindFloat:
		f, _ := strconv.ParseFloat(s, 64)
		return f
	case kindBool:
		return strings.EqualFold(s, "true")
	default:
		return s
	}
}

func isBoolText(s string) bool {
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
}
