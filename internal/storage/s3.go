package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/robert-malhotra/go-scdior/internal/config"
)

// ObjectStore moves whole objects in and out of buckets.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Put(ctx context.Context, bucket, key string, body io.ReadSeeker) error
}

// S3 is an ObjectStore on AWS S3 or an S3-compatible service such as
// MinIO.
type S3 struct {
	client *s3.Client
}

// S3Option adjusts the S3 client.
type S3Option func(*s3.Options)

// WithStaticCredentials uses fixed credentials instead of the default
// chain.
func WithStaticCredentials(id, secret string) S3Option {
	return func(o *s3.Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(id, secret, "")
	}
}

// WithHTTPClient replaces the HTTP client of the S3 API.
func WithHTTPClient(c s3.HTTPClient) S3Option {
	return func(o *s3.Options) { o.HTTPClient = c }
}

// NewS3 builds an S3 store. The region defaults to us-east-1; credentials
// come from the default AWS chain unless overridden.
func NewS3(ctx context.Context, cfg config.S3Config, opts ...S3Option) (*S3, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and similar services reject streaming checksums
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
		for _, opt := range opts {
			opt(o)
		}
	})
	return &S3{client: client}, nil
}

func (s *S3) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

func (s *S3) Put(ctx context.Context, bucket, key string, body io.ReadSeeker) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{Bucket: &bucket, Key: &key, Body: body})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Open returns the object store the configuration selects, or nil for the
// local driver.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case "", "local":
		return nil, nil
	case schemeS3:
		s, err := NewS3(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
