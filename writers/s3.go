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

package writers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/aaronlmathis/tabload/core"
)

// This file implements the S3 object sink: a CSV table is buffered in memory and stored
// with a single PutObject call, so a failed upload never leaves a partial object behind.

// ObjectPutter is the part of the S3 API the sink needs. *s3.Client satisfies it.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ClientOptions configures the S3 client.
type S3ClientOptions struct {
	Region         string          // AWS region
	Profile        string          // AWS shared config profile
	Credentials    aws.Credentials // Explicit static credentials
	EndpointURL    string          // Custom endpoint (LocalStack, MinIO)
	ForcePathStyle bool            // Use path-style addressing
}

// S3ClientOption represents a configuration function for the S3 client.
type S3ClientOption func(*S3ClientOptions)

func WithS3Region(region string) S3ClientOption {
	return func(opts *S3ClientOptions) {
		opts.Region = region
	}
}

func WithS3Profile(profile string) S3ClientOption {
	return func(opts *S3ClientOptions) {
		opts.Profile = profile
	}
}

func WithS3StaticCredentials(accessKeyID, secretAccessKey string) S3ClientOption {
	return func(opts *S3ClientOptions) {
		opts.Credentials = aws.Credentials{AccessKeyID: accessKeyID, SecretAccessKey: secretAccessKey}
	}
}

func WithS3Endpoint(endpoint string) S3ClientOption {
	return func(opts *S3ClientOptions) {
		opts.EndpointURL = endpoint
	}
}

func WithS3PathStyle(pathStyle bool) S3ClientOption {
	return func(opts *S3ClientOptions) {
		opts.ForcePathStyle = pathStyle
	}
}

// NewS3Client builds an S3 client from the default AWS configuration chain plus options.
func NewS3Client(ctx context.Context, options ...S3ClientOption) (*s3.Client, error) {
	var opts S3ClientOptions
	for _, option := range options {
		option(&opts)
	}

	cfg, err := createAWSConfig(ctx, opts)
	if err != nil {
		return nil, core.NewStageError(core.StageConfig, core.KindConfig, "create_aws_config", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	}), nil
}

// createAWSConfig creates AWS configuration from options
func createAWSConfig(ctx context.Context, opts S3ClientOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}

	return cfg, nil
}

// UploadResult describes a stored object.
type UploadResult struct {
	Bucket       string
	Key          string
	BytesWritten int64
	ETag         string
	VersionID    string
	Duration     time.Duration
}

// s3Object collects written bytes and stores them with one PutObject on Close.
type s3Object struct {
	buf    bytes.Buffer
	putter ObjectPutter
	ctx    context.Context
	bucket string
	key    string
	result *UploadResult
}

func (o *s3Object) Write(p []byte) (int, error) { return o.buf.Write(p) }

func (o *s3Object) Close() error {
	start := time.Now()
	size := int64(o.buf.Len())

	out, err := o.putter.PutObject(o.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(o.bucket),
		Key:           aws.String(o.key),
		Body:          bytes.NewReader(o.buf.Bytes()),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("text/csv"),
	})
	if err != nil {
		return err
	}

	o.result = &UploadResult{
		Bucket:       o.bucket,
		Key:          o.key,
		BytesWritten: size,
		Duration:     time.Since(start),
	}
	if out != nil {
		o.result.ETag = strings.Trim(aws.ToString(out.ETag), "\"")
		o.result.VersionID = aws.ToString(out.VersionId)
	}
	return nil
}

// UploadTable serializes table as CSV and stores it at bucket/key.
//
// Failures are returned as *core.StageError in the sink stage: KindConfig for missing
// parameters, KindSerialization for values with no CSV form, and the S3 classification
// (KindPermission, KindNotFound, KindNetwork, KindService) for the upload itself.
// Nothing is uploaded unless the whole table serialized.
func UploadTable(ctx context.Context, putter ObjectPutter, table *core.Table, bucket, key string) (*UploadResult, error) {
	switch {
	case putter == nil:
		return nil, core.NewStageError(core.StageSink, core.KindConfig, "validate", fmt.Errorf("no S3 client"))
	case bucket == "":
		return nil, core.NewStageError(core.StageSink, core.KindConfig, "validate", fmt.Errorf("bucket is required"))
	case key == "":
		return nil, core.NewStageError(core.StageSink, core.KindConfig, "validate", fmt.Errorf("key is required"))
	case table == nil:
		return nil, core.NewStageError(core.StageSink, core.KindConfig, "validate", fmt.Errorf("no table"))
	}

	obj := &s3Object{putter: putter, ctx: ctx, bucket: bucket, key: key}
	w := NewCSVWriter(obj, WithHeaders(table.Columns))

	for _, row := range table.Rows {
		if err := w.Write(ctx, row); err != nil {
			return nil, core.NewStageError(core.StageSink, core.KindSerialization, "serialize", err)
		}
	}

	if err := w.Close(); err != nil {
		var csvErr *CSVWriterError
		if errors.As(err, &csvErr) {
			return nil, core.NewStageError(core.StageSink, core.KindSerialization, "serialize", err)
		}
		return nil, core.NewStageError(core.StageSink, ClassifyS3Error(err), "put_object", err)
	}

	return obj.result, nil
}

// ClassifyS3Error maps an S3 client error onto the error taxonomy.
func ClassifyS3Error(err error) core.ErrorKind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"ExpiredToken", "InvalidToken", "AllAccessDisabled":
			return core.KindPermission
		case "NoSuchBucket", "NotFound":
			return core.KindNotFound
		}
		return core.KindService
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return core.KindNetwork
	}
	return core.KindService
}

// ObjectKey derives an object key from a local file path: slash separated, without
// leading "./" or "/".
func ObjectKey(path string) string {
	key := filepath.ToSlash(filepath.Clean(path))
	key = strings.TrimLeft(key, "/")
	if key == "." {
		return ""
	}
	return key
}
