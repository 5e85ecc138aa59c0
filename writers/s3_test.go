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
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tabload/core"
)

// mockPutter stores objects in memory or fails with err.
type mockPutter struct {
	objects     map[string][]byte
	contentType string
	calls       int
	err         error
}

func newMockPutter() *mockPutter {
	return &mockPutter{objects: make(map[string][]byte)}
}

func (m *mockPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = data
	m.contentType = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag-1"`), VersionId: aws.String("v1")}, nil
}

func sampleTable() *core.Table {
	table := core.NewTable("id", "Drugs_and_Chemistry")
	table.Append(core.Record{"id": 1, "Drugs_and_Chemistry": 1})
	table.Append(core.Record{"id": 3, "Drugs_and_Chemistry": 1})
	return table
}

func TestUploadTable(t *testing.T) {
	putter := newMockPutter()

	result, err := UploadTable(context.Background(), putter, sampleTable(), "local-bucket", "data/out.csv")
	require.NoError(t, err)

	want := "id,Drugs_and_Chemistry\n1,1\n3,1\n"
	assert.Equal(t, want, string(putter.objects["local-bucket/data/out.csv"]))
	assert.Equal(t, "text/csv", putter.contentType)

	assert.Equal(t, "local-bucket", result.Bucket)
	assert.Equal(t, "data/out.csv", result.Key)
	assert.Equal(t, int64(len(want)), result.BytesWritten)
	assert.Equal(t, "etag-1", result.ETag)
	assert.Equal(t, "v1", result.VersionID)
}

func TestUploadTable_EmptyTableUploadsHeader(t *testing.T) {
	putter := newMockPutter()

	_, err := UploadTable(context.Background(), putter, core.NewTable("a", "b"), "b", "k.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(putter.objects["b/k.csv"]))
}

func TestUploadTable_Validation(t *testing.T) {
	putter := newMockPutter()
	ctx := context.Background()

	_, err := UploadTable(ctx, nil, sampleTable(), "b", "k")
	assert.Equal(t, core.KindConfig, core.KindOf(err))
	_, err = UploadTable(ctx, putter, sampleTable(), "", "k")
	assert.Equal(t, core.KindConfig, core.KindOf(err))
	_, err = UploadTable(ctx, putter, sampleTable(), "b", "")
	assert.Equal(t, core.KindConfig, core.KindOf(err))
	_, err = UploadTable(ctx, putter, nil, "b", "k")
	assert.Equal(t, core.KindConfig, core.KindOf(err))
	assert.Equal(t, 0, putter.calls)
}

func TestUploadTable_SerializationFailureUploadsNothing(t *testing.T) {
	putter := newMockPutter()
	table := core.NewTable("id", "callback")
	table.Append(core.Record{"id": 1, "callback": "ok"})
	table.Append(core.Record{"id": 2, "callback": func() {}})

	_, err := UploadTable(context.Background(), putter, table, "b", "k")
	require.Error(t, err)
	assert.Equal(t, core.StageSink, core.StageOf(err))
	assert.Equal(t, core.KindSerialization, core.KindOf(err))
	assert.Equal(t, 0, putter.calls)
	assert.Empty(t, putter.objects)
}

func TestUploadTable_PutFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.ErrorKind
	}{
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}, core.KindPermission},
		{"bad key id", &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}, core.KindPermission},
		{"bad signature", &smithy.GenericAPIError{Code: "SignatureDoesNotMatch"}, core.KindPermission},
		{"no bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, core.KindNotFound},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, core.KindService},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, core.KindNetwork},
		{"deadline", context.DeadlineExceeded, core.KindNetwork},
		{"other", errors.New("boom"), core.KindService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			putter := newMockPutter()
			putter.err = &smithy.OperationError{ServiceID: "S3", OperationName: "PutObject", Err: tt.err}

			result, err := UploadTable(context.Background(), putter, sampleTable(), "local-bucket", "k.csv")
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, core.StageSink, core.StageOf(err))
			assert.Equal(t, tt.want, core.KindOf(err))
			assert.Equal(t, 1, putter.calls)
			assert.Empty(t, putter.objects)
		})
	}
}

func TestObjectKey(t *testing.T) {
	tests := map[string]string{
		"50-years/src/data/Cancer Data12A.csv": "50-years/src/data/Cancer Data12A.csv",
		"./data/in.json":                       "data/in.json",
		"/tmp/x/in.xml":                        "tmp/x/in.xml",
		"data//nested/../in.csv":               "data/in.csv",
		"in.csv":                               "in.csv",
		".":                                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ObjectKey(in), in)
	}
}

func TestCreateAWSConfig_StaticCredentials(t *testing.T) {
	cfg, err := createAWSConfig(context.Background(), S3ClientOptions{
		Region:      "eu-west-2",
		Credentials: aws.Credentials{AccessKeyID: "xxx", SecretAccessKey: "xxx"},
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-2", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xxx", creds.AccessKeyID)
	assert.Equal(t, "xxx", creds.SecretAccessKey)
}

func TestNewS3Client(t *testing.T) {
	client, err := NewS3Client(context.Background(),
		WithS3Region("eu-west-2"),
		WithS3Endpoint("http://localhost:4566"),
		WithS3PathStyle(true),
		WithS3StaticCredentials("xxx", "xxx"),
	)
	require.NoError(t, err)

	opts := client.Options()
	assert.Equal(t, "eu-west-2", opts.Region)
	assert.Equal(t, "http://localhost:4566", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}
