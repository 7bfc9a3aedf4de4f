package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/openblog/backend/internal/config"
)

// Folders used for uploaded images.
const (
	FolderAvatars       = "avatars"
	FolderFeatureImages = "feature-images"
)

var ErrEmptyFile = errors.New("empty file")

// File is an uploaded image ready to be stored.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageUploader stores an image and returns the public URL it is served from.
type ImageUploader interface {
	Upload(ctx context.Context, folder string, f *File) (string, error)
}

// Pinger is implemented by uploaders that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New returns the uploader selected by cfg.StorageBackend.
func New(cfg *config.Config) (ImageUploader, error) {
	switch cfg.StorageBackend {
	case "minio":
		u, err := NewMinioUploader(&MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.StoragePublicURL,
		})
		if err != nil {
			return nil, err
		}
		return u, nil
	case "s3":
		u, err := NewS3Uploader(cfg)
		if err != nil {
			return nil, err
		}
		return u, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// objectKey builds a unique key for f under folder, keeping the file extension.
func objectKey(folder string, f *File) string {
	ext := strings.ToLower(path.Ext(f.Name))
	return path.Join(folder, uuid.NewString()+ext)
}

func contentType(f *File) string {
	if f.ContentType == "" {
		return "application/octet-stream"
	}
	return f.ContentType
}

// joinURL appends key to base, tolerating a trailing slash on base.
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
