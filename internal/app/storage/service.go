/*
Package storage writes objects to S3-compatible storage.

It backs the match archive: one small JSON document per finished match.
*/
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ServiceConfig holds the S3 connection settings.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// ErrNotConfigured is returned when no bucket is set.
var ErrNotConfigured = errors.New("object storage is not configured")

// Uploader is the part of manager.Uploader used here.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store puts objects into one bucket.
type S3Store struct {
	bucket   string
	uploader Uploader
}

// NewS3Store builds an S3 client for cfg. A custom endpoint switches to path-style addressing
// so MinIO and R2 work.
func NewS3Store(ctx context.Context, cfg ServiceConfig) (*S3Store, error) {
	if cfg.S3BucketName == "" {
		return nil, ErrNotConfigured
	}

	region := cfg.S3Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)))
	}

	sdkCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithUploader(cfg.S3BucketName, manager.NewUploader(client)), nil
}

// NewS3StoreWithUploader returns a store using uploader, mainly for tests.
func NewS3StoreWithUploader(bucket string, uploader Uploader) *S3Store {
	return &S3Store{bucket: bucket, uploader: uploader}
}

// PutObject uploads body under key. It implements results.ObjectStore.
func (s *S3Store) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
