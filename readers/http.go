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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/tabload/core"
)

// This file implements a paginated HTTP JSON reader for REST API ingestion.
// It supports bearer authentication, page and offset pagination, and retries with backoff.

// HTTPReaderError provides structured error information for HTTP reader operations
type HTTPReaderError struct {
	Op         string // Operation that failed (e.g., "request", "parse", "status_check")
	StatusCode int    // HTTP status code if applicable
	URL        string // URL being accessed when error occurred
	Err        error  // Underlying error
}

func (e *HTTPReaderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http reader %s [%d] %s: %v", e.Op, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("http reader %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *HTTPReaderError) Unwrap() error {
	return e.Err
}

// HTTPReaderStats holds statistics about the HTTP reader's performance
type HTTPReaderStats struct {
	RequestCount  int64         // Total HTTP requests made
	PagesRead     int64         // Pages that returned records
	RecordsRead   int64         // Total records read
	BytesRead     int64         // Total bytes read
	RetryCount    int64         // Number of retries performed
	RateLimitHits int64         // Number of rate limit hits
	ReadDuration  time.Duration // Total time spent reading
}

// Pagination types understood by HTTPReader.
const (
	PaginationNone   = "none"
	PaginationPage   = "page"
	PaginationOffset = "offset"
)

// PaginationConfig defines pagination behavior
type PaginationConfig struct {
	Type        string // "page", "offset" or "none"
	LimitParam  string // Parameter name for limit/page size
	PageParam   string // Parameter name for page number
	OffsetParam string // Parameter name for offset
	PageSize    int    // Number of records per page
	MaxPages    int    // Maximum pages to fetch (0 = unlimited)
}

// HTTPReaderOptions configures the HTTP reader
type HTTPReaderOptions struct {
	Headers          map[string]string // Additional headers
	QueryParams      map[string]string // Query parameters
	BearerToken      string            // Sent as "Authorization: Bearer <token>" when set
	Pagination       *PaginationConfig // Pagination configuration
	Timeout          time.Duration     // Request timeout
	RetryAttempts    int               // Number of retry attempts
	RetryDelay       time.Duration     // Base delay between retries
	DataPath         string            // Dotted path to the data array inside an object response
	MaxResponseSize  int64             // Maximum response size in bytes
	ValidStatusCodes []int             // Valid HTTP status codes
	UserAgent        string            // User agent string
	CustomClient     *http.Client      // Custom HTTP client
}

// ReaderOptionHTTP is a functional option for HTTPReaderOptions
type ReaderOptionHTTP func(*HTTPReaderOptions)

func WithHTTPHeaders(headers map[string]string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		for k, v := range headers {
			opts.Headers[k] = v
		}
	}
}

func WithHTTPQueryParams(params map[string]string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		for k, v := range params {
			opts.QueryParams[k] = v
		}
	}
}

func WithHTTPBearerToken(token string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.BearerToken = token
	}
}

func WithHTTPPagination(pagination *PaginationConfig) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Pagination = pagination
	}
}

func WithHTTPTimeout(timeout time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Timeout = timeout
	}
}

func WithHTTPRetries(attempts int, delay time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.RetryAttempts = attempts
		opts.RetryDelay = delay
	}
}

func WithHTTPDataPath(path string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.DataPath = path
	}
}

func WithHTTPClient(client *http.Client) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.CustomClient = client
	}
}

// HTTPReader pages through a JSON REST endpoint.
type HTTPReader struct {
	baseURL     string
	client      *http.Client
	opts        *HTTPReaderOptions
	stats       HTTPReaderStats
	hasMoreData bool
	currentPage int
}

// NewHTTPReader creates a new HTTP API reader with configurable options
func NewHTTPReader(rawURL string, options ...ReaderOptionHTTP) (*HTTPReader, error) {
	opts := &HTTPReaderOptions{
		Headers:          make(map[string]string),
		QueryParams:      make(map[string]string),
		Timeout:          30 * time.Second,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
		MaxResponseSize:  100 * 1024 * 1024, // 100MB
		ValidStatusCodes: []int{200},
		UserAgent:        "Tabload-HTTPReader/1.0",
	}

	// Apply functional options
	for _, option := range options {
		option(opts)
	}

	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, &HTTPReaderError{Op: "validate_url", URL: rawURL, Err: err}
	}

	client := opts.CustomClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTTPReader{
		baseURL:     rawURL,
		client:      client,
		opts:        opts,
		hasMoreData: true,
		currentPage: 1,
	}, nil
}

// NextPage fetches the next page of records. It returns io.EOF once the endpoint is exhausted.
func (hr *HTTPReader) NextPage(ctx context.Context) ([]core.Record, error) {
	start := time.Now()
	defer func() {
		hr.stats.ReadDuration += time.Since(start)
	}()

	if !hr.hasMoreData {
		return nil, io.EOF
	}

	requestURL, err := hr.getRequestURL()
	if err != nil {
		return nil, &HTTPReaderError{Op: "build_url", URL: hr.baseURL, Err: err}
	}

	data, err := hr.executeRequestWithRetry(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	hr.stats.RequestCount++

	records, err := hr.parseJSONResponse(data)
	if err != nil {
		return nil, &HTTPReaderError{Op: "parse", URL: requestURL, Err: err}
	}

	hr.updatePaginationState(len(records))

	if len(records) == 0 {
		hr.hasMoreData = false
		return nil, io.EOF
	}

	hr.stats.PagesRead++
	hr.stats.RecordsRead += int64(len(records))
	return records, nil
}

// Stats returns HTTP reader performance statistics
func (hr *HTTPReader) Stats() HTTPReaderStats {
	return hr.stats
}

// getRequestURL builds the URL for the current request
func (hr *HTTPReader) getRequestURL() (string, error) {
	u, err := url.Parse(hr.baseURL)
	if err != nil {
		return "", err
	}

	params := u.Query()
	for k, v := range hr.opts.QueryParams {
		params.Set(k, v)
	}

	if pg := hr.opts.Pagination; pg != nil {
		switch pg.Type {
		case PaginationPage:
			if pg.LimitParam != "" {
				params.Set(pg.LimitParam, strconv.Itoa(pg.PageSize))
			}
			if pg.PageParam != "" {
				params.Set(pg.PageParam, strconv.Itoa(hr.currentPage))
			}
		case PaginationOffset:
			if pg.LimitParam != "" {
				params.Set(pg.LimitParam, strconv.Itoa(pg.PageSize))
			}
			if pg.OffsetParam != "" {
				params.Set(pg.OffsetParam, strconv.Itoa((hr.currentPage-1)*pg.PageSize))
			}
		}
	}

	u.RawQuery = params.Encode()
	return u.String(), nil
}

// executeRequestWithRetry executes HTTP request with retry logic
func (hr *HTTPReader) executeRequestWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= hr.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			delay := hr.opts.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &HTTPReaderError{Op: "retry", URL: url, Err: ctx.Err()}
			}
			hr.stats.RetryCount++
		}

		data, err := hr.executeRequest(ctx, url)
		if err == nil {
			return data, nil
		}

		lastErr = err

		// Retry rate limits and server errors only
		if httpErr, ok := err.(*HTTPReaderError); ok {
			if httpErr.StatusCode == http.StatusTooManyRequests {
				hr.stats.RateLimitHits++
				continue
			}
			if httpErr.StatusCode >= 500 {
				continue
			}
		}
		break
	}

	return nil, lastErr
}

// executeRequest executes a single HTTP request
func (hr *HTTPReader) executeRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &HTTPReaderError{Op: "create_request", URL: url, Err: err}
	}

	req.Header.Set("User-Agent", hr.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range hr.opts.Headers {
		req.Header.Set(k, v)
	}
	if hr.opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+hr.opts.BearerToken)
	}

	resp, err := hr.client.Do(req)
	if err != nil {
		return nil, &HTTPReaderError{Op: "request", URL: url, Err: err}
	}
	defer resp.Body.Close()

	if !hr.isValidStatusCode(resp.StatusCode) {
		return nil, &HTTPReaderError{
			Op:         "status_check",
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, hr.opts.MaxResponseSize))
	if err != nil {
		return nil, &HTTPReaderError{Op: "read_response", URL: url, Err: err}
	}

	hr.stats.BytesRead += int64(len(data))
	return data, nil
}

// parseJSONResponse parses JSON response
func (hr *HTTPReader) parseJSONResponse(data []byte) ([]core.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var response interface{}
	if err := dec.Decode(&response); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}

	if hr.opts.DataPath != "" {
		extracted, err := extractDataFromPath(response, hr.opts.DataPath)
		if err != nil {
			return nil, fmt.Errorf("data path extraction failed: %w", err)
		}
		response = extracted
	}

	return convertToRecords(response)
}

// updatePaginationState updates pagination state for next request
func (hr *HTTPReader) updatePaginationState(received int) {
	pg := hr.opts.Pagination
	if pg == nil || pg.Type == PaginationNone || pg.Type == "" {
		hr.hasMoreData = false
		return
	}

	if pg.MaxPages > 0 && hr.currentPage >= pg.MaxPages {
		hr.hasMoreData = false
		return
	}

	hr.currentPage++
	// A short page is the last one
	hr.hasMoreData = pg.PageSize <= 0 || received >= pg.PageSize
}

// isValidStatusCode checks if the status code is considered valid
func (hr *HTTPReader) isValidStatusCode(statusCode int) bool {
	for _, validCode := range hr.opts.ValidStatusCodes {
		if statusCode == validCode {
			return true
		}
	}
	return false
}

// extractDataFromPath extracts data using a simple dotted path
func extractDataFromPath(data interface{}, path string) (interface{}, error) {
	current := data

	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}

		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("cannot traverse path %s: expected object", part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("path element %s not found", part)
		}
	}

	return current, nil
}

// convertToRecords converts response data to a core.Record slice
func convertToRecords(data interface{}) ([]core.Record, error) {
	switch v := data.(type) {
	case []interface{}:
		records := make([]core.Record, 0, len(v))
		for _, item := range v {
			if record, ok := item.(map[string]interface{}); ok {
				records = append(records, core.Record(record))
			}
		}
		return records, nil
	case map[string]interface{}:
		// Single object response
		return []core.Record{core.Record(v)}, nil
	default:
		return nil, fmt.Errorf("unexpected response format: %T", data)
	}
}
