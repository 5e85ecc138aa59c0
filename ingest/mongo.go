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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/tabload/core"
)

// This file implements the MongoDB destination. Each resource maps to a collection and each
// record to a document whose _id is the record key.

// MongoOptions configures the MongoDB destination.
type MongoOptions struct {
	URI            string        // MongoDB connection URI
	Database       string        // Database name
	ConnectTimeout time.Duration // Connection timeout
	MaxPoolSize    uint64        // Maximum connection pool size
}

// MongoOption represents a configuration function for MongoOptions.
type MongoOption func(*MongoOptions)

func WithMongoURI(uri string) MongoOption {
	return func(opts *MongoOptions) {
		opts.URI = uri
	}
}

func WithMongoDatabase(database string) MongoOption {
	return func(opts *MongoOptions) {
		opts.Database = database
	}
}

func WithMongoTimeout(timeout time.Duration) MongoOption {
	return func(opts *MongoOptions) {
		opts.ConnectTimeout = timeout
	}
}

func WithMongoPoolSize(max uint64) MongoOption {
	return func(opts *MongoOptions) {
		opts.MaxPoolSize = max
	}
}

// MongoDestination merges records into MongoDB collections.
type MongoDestination struct {
	client  *mongo.Client
	db      *mongo.Database
	options MongoOptions
	mu      sync.Mutex
}

var _ Destination = (*MongoDestination)(nil)

// NewMongoDestination connects to MongoDB and verifies the connection.
func NewMongoDestination(ctx context.Context, opts ...MongoOption) (*MongoDestination, error) {
	cfg := MongoOptions{
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    10,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.URI == "" {
		return nil, &IngestError{Op: "validate", Err: fmt.Errorf("mongo uri is required")}
	}
	if cfg.Database == "" {
		return nil, &IngestError{Op: "validate", Err: fmt.Errorf("database name is required")}
	}

	client, err := mongo.Connect(ctx, buildClientOptions(cfg))
	if err != nil {
		return nil, &IngestError{Op: "connect", Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, &IngestError{Op: "ping", Err: err}
	}

	return &MongoDestination{
		client:  client,
		db:      client.Database(cfg.Database),
		options: cfg,
	}, nil
}

func buildClientOptions(opts MongoOptions) *options.ClientOptions {
	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
		clientOpts.SetServerSelectionTimeout(opts.ConnectTimeout)
	}
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	return clientOpts
}

// Merge replaces or inserts one document per record, keyed by the key field.
func (d *MongoDestination) Merge(ctx context.Context, table string, key string, records []core.Record) (MergeStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, skipped, err := prepareRows(records, key, time.Now().UTC())
	stats := MergeStats{Skipped: skipped}
	if err != nil {
		return stats, &IngestError{Op: "encode", Resource: table, Err: err}
	}
	if len(rows) == 0 {
		return stats, nil
	}

	models := make([]mongo.WriteModel, 0, len(rows))
	for _, row := range rows {
		doc, err := mongoDocument(row)
		if err != nil {
			return stats, &IngestError{Op: "encode", Resource: table, Err: err}
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": row.ID}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	res, err := d.db.Collection(table).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return stats, &IngestError{Op: "merge", Resource: table, Err: err}
	}

	stats.Upserted = int(res.UpsertedCount + res.MatchedCount)
	return stats, nil
}

// mongoDocument stores the payload as a nested document rather than JSON text.
func mongoDocument(row storedRecord) (bson.M, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil {
		return nil, err
	}
	return bson.M{
		"_id":       row.ID,
		"payload":   payload,
		"loaded_at": row.LoadedAt,
	}, nil
}

// Close disconnects the client.
func (d *MongoDestination) Close() error {
	if d.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.options.ConnectTimeout)
	defer cancel()
	return d.client.Disconnect(ctx)
}
