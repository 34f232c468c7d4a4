package release

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Exporter publishes a snapshot artifact somewhere durable.
type Exporter interface {
	Export(ctx context.Context, snap *Snapshot) (location string, err error)
}

// FSExporter writes snapshots into a directory, one file per version.
type FSExporter struct {
	Dir string
}

func (e *FSExporter) Export(ctx context.Context, snap *Snapshot) (string, error) {
	data, err := snap.Marshal()
	if err != nil {
		return "", fmt.Errorf("release: marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", fmt.Errorf("release: create export dir: %w", err)
	}
	path := filepath.Join(e.Dir, fmt.Sprintf("rules-%s.json", snap.Version))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("release: write snapshot: %w", err)
	}
	return path, nil
}

// s3API is the slice of the S3 client the exporter needs.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter uploads snapshots to an S3 bucket under
// <prefix>/rules-<version>.json.
type S3Exporter struct {
	Client s3API
	Bucket string
	Prefix string
}

// NewS3Exporter wraps an S3 client.
func NewS3Exporter(client *s3.Client, bucket, prefix string) *S3Exporter {
	return &S3Exporter{Client: client, Bucket: bucket, Prefix: prefix}
}

// NewS3ExporterFromEnv builds an exporter using the ambient AWS
// credential chain (environment, shared config, instance role).
func NewS3ExporterFromEnv(ctx context.Context, bucket, prefix string) (*S3Exporter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("release: aws config: %w", err)
	}
	return NewS3Exporter(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (e *S3Exporter) Export(ctx context.Context, snap *Snapshot) (string, error) {
	data, err := snap.Marshal()
	if err != nil {
		return "", fmt.Errorf("release: marshal snapshot: %w", err)
	}
	key := fmt.Sprintf("rules-%s.json", snap.Version)
	if e.Prefix != "" {
		key = e.Prefix + "/" + key
	}
	_, err = e.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("release: upload snapshot: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", e.Bucket, key), nil
}
