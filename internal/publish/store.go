package publish

import (
	"context"
	"fmt"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sczmerge/internal/config"
)

// ObjectStore is the subset of an S3-compatible client the publisher needs
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	UploadFile(ctx context.Context, bucket, key, path, contentType string) (int64, error)
}

// MinioStore implements ObjectStore with the minio-go SDK
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore creates a client for the configured endpoint. The endpoint may
// be a bare host:port or a URL; an https scheme turns SSL on.
func NewMinioStore(cfg config.PublishConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("publish endpoint is required")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStore{client: client}, nil
}

// EnsureBucket creates the bucket when it does not exist yet
func (s *MinioStore) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// UploadFile streams a local file to bucket/key
func (s *MinioStore) UploadFile(ctx context.Context, bucket, key, path, contentType string) (int64, error) {
	info, err := s.client.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return info.Size, nil
}
