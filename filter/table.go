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
	"fmt"

	"github.com/aaronlmathis/tabload/core"
)

const (
	// DefaultColumn is the column the default predicate tests.
	DefaultColumn = "Drugs_and_Chemistry"
	// DefaultValue is the value the default predicate expects.
	DefaultValue = 1
)

// Predicate keeps rows whose Column equals Value.
type Predicate struct {
	Column string
	Value  interface{}
}

// DefaultPredicate returns Drugs_and_Chemistry == 1.
func DefaultPredicate() Predicate {
	return Predicate{Column: DefaultColumn, Value: DefaultValue}
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s == %v", p.Column, p.Value)
}

// Filter returns the record filter for the predicate.
func (p Predicate) Filter() core.Filter {
	return Equals(p.Column, p.Value)
}

// Apply returns the rows of table matching the predicate.
//
// The result is never nil and always carries the input columns, so zero matches yield a
// zero-row table with the original column set. A column absent from the table is reported
// as core.KindMissingColumn together with that empty table.
func Apply(ctx context.Context, table *core.Table, p Predicate) (*core.Table, error) {
	if table == nil {
		return core.NewTable(), core.NewStageError(core.StageFilter, core.KindShape, "apply", fmt.Errorf("no table"))
	}

	out := table.Empty()

	if p.Column == "" {
		return out, core.NewStageError(core.StageFilter, core.KindConfig, "apply", fmt.Errorf("filter column is empty"))
	}
	if !table.HasColumn(p.Column) {
		return out, core.NewStageError(core.StageFilter, core.KindMissingColumn, "apply",
			fmt.Errorf("column %q not found in %d columns", p.Column, len(table.Columns)))
	}

	f := p.Filter()
	for _, row := range table.Rows {
		include, err := f.ShouldInclude(ctx, row)
		if err != nil {
			return table.Empty(), core.NewStageError(core.StageFilter, core.KindShape, "apply", err)
		}
		if include {
			out.Append(row)
		}
	}

	return out, nil
}
