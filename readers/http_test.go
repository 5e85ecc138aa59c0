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
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPReader_InvalidURL(t *testing.T) {
	_, err := NewHTTPReader("not a url")
	require.Error(t, err)
	var httpErr *HTTPReaderError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "validate_url", httpErr.Op)
}

func TestHTTPReader_PagePagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		switch page {
		case 1:
			fmt.Fprint(w, `[{"id":1},{"id":2}]`)
		case 2:
			fmt.Fprint(w, `[{"id":3}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	reader, err := NewHTTPReader(srv.URL, WithHTTPPagination(&PaginationConfig{
		Type: PaginationPage, LimitParam: "per_page", PageParam: "page", PageSize: 2,
	}))
	require.NoError(t, err)

	ctx := context.Background()
	first, err := reader.NextPage(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := reader.NextPage(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 1)

	// a short page ends pagination without another request
	_, err = reader.NextPage(ctx)
	assert.Equal(t, io.EOF, err)

	stats := reader.Stats()
	assert.Equal(t, int64(2), stats.RequestCount)
	assert.Equal(t, int64(3), stats.RecordsRead)
}

func TestHTTPReader_OffsetPagination(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		if len(offsets) > 2 {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[{"id":1},{"id":2}]`)
	}))
	defer srv.Close()

	reader, err := NewHTTPReader(srv.URL, WithHTTPPagination(&PaginationConfig{
		Type: PaginationOffset, LimitParam: "limit", OffsetParam: "offset", PageSize: 2,
	}))
	require.NoError(t, err)

	for {
		_, err := reader.NextPage(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"0", "2", "4"}, offsets)
}

func TestHTTPReader_DataPathAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		assert.Equal(t, "v", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"data":{"items":[{"id":"a"},"skipped",{"id":"b"}]}}`)
	}))
	defer srv.Close()

	reader, err := NewHTTPReader(srv.URL,
		WithHTTPBearerToken("tok"),
		WithHTTPHeaders(map[string]string{"X-Test": "yes"}),
		WithHTTPQueryParams(map[string]string{"q": "v"}),
		WithHTTPDataPath("data.items"),
	)
	require.NoError(t, err)

	records, err := reader.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[1]["id"])

	// no pagination means a single page
	_, err = reader.NextPage(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestHTTPReader_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[{"id":1}]`)
	}))
	defer srv.Close()

	reader, err := NewHTTPReader(srv.URL, WithHTTPRetries(3, time.Millisecond))
	require.NoError(t, err)

	records, err := reader.NextPage(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int64(2), reader.Stats().RetryCount)
	assert.Equal(t, int64(2), reader.Stats().RateLimitHits)
}

func TestHTTPReader_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	reader, err := NewHTTPReader(srv.URL, WithHTTPRetries(3, time.Millisecond))
	require.NoError(t, err)

	_, err = reader.NextPage(context.Background())
	var httpErr *HTTPReaderError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPReader_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"broken":`)
	}))
	defer srv.Close()

	reader, err := NewHTTPReader(srv.URL)
	require.NoError(t, err)

	_, err = reader.NextPage(context.Background())
	var httpErr *HTTPReaderError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "parse", httpErr.Op)
}
