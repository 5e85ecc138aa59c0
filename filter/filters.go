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

package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/aaronlmathis/tabload/core"
)

// Package filter provides record filtering for Tabload pipelines.
//
// This file contains the value-based record filters; table.go applies them to whole tables.

// Equals creates a filter that includes records where the field equals the specified value.
//
// Numbers compare by value regardless of their Go type (int, float64, json.Number), so a
// JSON 1 matches a CSV 1. Otherwise values compare by their text form, which lets XML text
// "1" match 1 as well.
func Equals(field string, expectedValue interface{}) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		if !exists {
			return false, nil
		}
		return valuesEqual(value, expectedValue), nil
	})
}

func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := convertToFloat64(a); ok {
		if bf, ok := convertToFloat64(b); ok {
			return af == bf
		}
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return textOf(a) == textOf(b)
}

func textOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// convertToFloat64 converts various numeric types to float64
func convertToFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
