// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package archive exports project logs to S3 as newline-delimited
// JSON, one object per export.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/staranto/runctlgo/internal/logbuf"
)

// Putter is the S3 surface Export needs. *s3.Client satisfies it.
type Putter interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectKey names the export object, <prefix>/<project>/<timestamp>.ndjson.
func ObjectKey(prefix string, project string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s.ndjson", prefix, project, at.UTC().Format("20060102T150405Z"))
}

// Encode renders entries as NDJSON.
func Encode(entries []logbuf.Entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Export writes entries to s3://bucket/key and returns the object
// URI.
func Export(ctx context.Context, client Putter, bucket string, key string, entries []logbuf.Entry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("nothing to export")
	}

	body, err := Encode(entries)
	if err != nil {
		return "", err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      awsv2.String(bucket),
		Key:         awsv2.String(key),
		Body:        bytes.NewReader(body),
		ContentType: awsv2.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("putting s3://%s/%s: %w", bucket, key, err)
	}

	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
