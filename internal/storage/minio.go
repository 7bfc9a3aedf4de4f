package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioUploader stores images in a MinIO bucket.
type MinioUploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL overrides the base URL returned for uploaded objects.
	PublicURL string
}

func NewMinioUploader(cfg *MinioConfig) (*MinioUploader, error) {
	// minio-go expects host:port
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}

	return &MinioUploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
	}, nil
}

func (u *MinioUploader) Upload(ctx context.Context, folder string, f *File) (string, error) {
	if f == nil || f.Body == nil {
		return "", ErrEmptyFile
	}

	key := objectKey(folder, f)
	size := f.Size
	if size <= 0 {
		size = -1
	}

	_, err := u.client.PutObject(ctx, u.bucket, key, f.Body, size, minio.PutObjectOptions{
		ContentType: contentType(f),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return joinURL(u.publicURL, key), nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (u *MinioUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", u.bucket, err)
		}
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (u *MinioUploader) Ping(ctx context.Context) error {
	_, err := u.client.BucketExists(ctx, u.bucket)
	return err
}
