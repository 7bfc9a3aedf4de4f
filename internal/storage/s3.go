package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/openblog/backend/internal/config"
)

// S3Uploader stores images in an S3 (or S3-compatible) bucket.
type S3Uploader struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Uploader(cfg *config.Config) (*S3Uploader, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := s3.Options{
		Region:       cfg.S3Region,
		Credentials:  awscreds.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		UsePathStyle: cfg.S3UsePathStyle,
	}
	if cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
	}

	publicURL := cfg.StoragePublicURL
	if publicURL == "" {
		switch {
		case cfg.S3Endpoint != "" && cfg.S3UsePathStyle:
			publicURL = joinURL(cfg.S3Endpoint, cfg.S3Bucket)
		default:
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
		}
	}

	return &S3Uploader{
		client:    s3.New(opts),
		bucket:    cfg.S3Bucket,
		publicURL: publicURL,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, folder string, f *File) (string, error) {
	if f == nil || f.Body == nil {
		return "", ErrEmptyFile
	}

	key := objectKey(folder, f)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f.Body,
		ContentType: aws.String(contentType(f)),
	}
	if f.Size > 0 {
		input.ContentLength = aws.Int64(f.Size)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload image %s: %w", key, err)
	}

	return joinURL(u.publicURL, key), nil
}

// Ping checks that the bucket is reachable.
func (u *S3Uploader) Ping(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.bucket)})
	return err
}
