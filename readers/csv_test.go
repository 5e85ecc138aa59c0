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
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tabload/core"
)

func TestCSVReader_Basic(t *testing.T) {
	input := "id,name,age\n1,Alice,30\n2,Bob,\n"
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader(input)))
	require.NoError(t, err)
	defer reader.Close()

	ctx := context.Background()
	assert.Equal(t, []string{"id", "name", "age"}, reader.Headers())

	first, err := reader.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Record{"id": "1", "name": "Alice", "age": "30"}, first)

	second, err := reader.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, second["age"])

	_, err = reader.Read(ctx)
	assert.Equal(t, io.EOF, err)

	stats := reader.Stats()
	assert.Equal(t, int64(2), stats.RecordsRead)
	assert.Equal(t, int64(1), stats.NullValueCounts["age"])
}

func TestCSVReader_NoHeaders(t *testing.T) {
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader("a;b\n")),
		WithCSVHasHeaders(false), WithCSVComma(';'))
	require.NoError(t, err)

	record, err := reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.Record{"col_0": "a", "col_1": "b"}, record)
}

func TestCSVReader_CancelledContext(t *testing.T) {
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader("a\n1\n")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reader.Read(ctx)
	var csvErr *CSVReaderError
	require.ErrorAs(t, err, &csvErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDedupeHeaders(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "a.1", "a.2"}, dedupeHeaders([]string{"a", "b", "a", "a"}))
	assert.Equal(t, []string{"a", "a.1", "a.1.1"}, dedupeHeaders([]string{"a", "a", "a.1"}))
}

func TestReadAllCSV_TypeInference(t *testing.T) {
	input := strings.Join([]string{
		"int,float,mixed_num,flag,text,blank,zip",
		"1,1.5,1,true,x,,00123",
		"2,2,2.5,FALSE,1,,00456",
		",3.25,3,,y,,00789",
	}, "\n") + "\n"

	records, headers, err := ReadAllCSV(context.Background(), io.NopCloser(strings.NewReader(input)))
	require.NoError(t, err)
	assert.Equal(t, []string{"int", "float", "mixed_num", "flag", "text", "blank", "zip"}, headers)
	require.Len(t, records, 3)

	assert.Equal(t, 1, records[0]["int"])
	assert.Nil(t, records[2]["int"])
	assert.Equal(t, 1.5, records[0]["float"])
	assert.Equal(t, 2.0, records[1]["float"])
	assert.Equal(t, 1.0, records[0]["mixed_num"])
	assert.Equal(t, 2.5, records[1]["mixed_num"])
	assert.Equal(t, true, records[0]["flag"])
	assert.Equal(t, false, records[1]["flag"])
	assert.Nil(t, records[2]["flag"])
	assert.Equal(t, "x", records[0]["text"])
	assert.Equal(t, "1", records[1]["text"])
	assert.Nil(t, records[0]["blank"])
	assert.Equal(t, 123, records[0]["zip"])
}

func TestParseScalar(t *testing.T) {
	assert.Equal(t, 1, ParseScalar("1"))
	assert.Equal(t, -4, ParseScalar(" -4 "))
	assert.Equal(t, 2.5, ParseScalar("2.5"))
	assert.Equal(t, true, ParseScalar("True"))
	assert.Equal(t, "CA", ParseScalar("CA"))
	assert.Equal(t, "", ParseScalar(""))
}
