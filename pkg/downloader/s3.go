package downloader

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3SourceConfig configures an S3Source.
type S3SourceConfig struct {
	// Bucket is the bucket holding dataset item payloads. Required.
	Bucket string

	// KeyPrefix is an optional prefix prepended to every item key.
	KeyPrefix string

	// Region is the AWS region.
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible storage.
	Endpoint string

	// AccessKeyID and SecretAccessKey enable static credentials; when both
	// are empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle uses path-style addressing, required by most
	// S3-compatible object stores.
	ForcePathStyle bool
}

// S3Source fetches item payloads from S3 or S3-compatible object storage.
type S3Source struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewS3Source creates an S3Source.
func NewS3Source(ctx context.Context, cfg S3SourceConfig) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"", // session token (empty for static credentials)
			)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Source{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// Fetch retrieves the payload stored under key.
func (s *S3Source) Fetch(ctx context.Context, key string) ([]byte, error) {
	objectKey := key
	if s.keyPrefix != "" {
		objectKey = path.Join(s.keyPrefix, key)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, objectKey, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, objectKey, err)
	}
	return data, nil
}
