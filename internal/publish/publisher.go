// Package publish uploads the run's artifacts to S3-compatible object storage.
// Uploads are best-effort: failures are reported per artifact and never turn a
// successful merge into a failed run.
package publish

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
)

// Upload is the outcome for one artifact
type Upload struct {
	Path string
	Key  string
	Size int64
	Err  error
}

// Publisher uploads files under a key prefix in one bucket
type Publisher struct {
	store  ObjectStore
	bucket string
	prefix string
	logger *slog.Logger
}

// NewPublisher creates a publisher for the given store
func NewPublisher(store ObjectStore, bucket, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With("component", "publisher"),
	}
}

// ObjectKey returns the object key for a local artifact path
func (p *Publisher) ObjectKey(localPath string) string {
	name := filepath.Base(localPath)
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads every path and reports each outcome in input order.
// A bucket that cannot be ensured fails every upload with the same error.
func (p *Publisher) Publish(ctx context.Context, paths []string) []Upload {
	uploads := make([]Upload, len(paths))
	for i, localPath := range paths {
		uploads[i] = Upload{Path: localPath, Key: p.ObjectKey(localPath)}
	}

	if err := p.store.EnsureBucket(ctx, p.bucket); err != nil {
		p.logger.WarnContext(ctx, "Bucket unavailable, skipping upload",
			slog.String("bucket", p.bucket),
			slog.String("error", err.Error()))
		for i := range uploads {
			uploads[i].Err = err
		}
		return uploads
	}

	for i := range uploads {
		u := &uploads[i]
		if err := ctx.Err(); err != nil {
			u.Err = err
			continue
		}

		size, err := p.store.UploadFile(ctx, p.bucket, u.Key, u.Path, contentType(u.Path))
		if err != nil {
			u.Err = err
			p.logger.WarnContext(ctx, "Upload failed",
				slog.String("path", u.Path),
				slog.String("key", u.Key),
				slog.String("error", err.Error()))
			continue
		}

		u.Size = size
		p.logger.InfoContext(ctx, "Uploaded artifact",
			slog.String("bucket", p.bucket),
			slog.String("key", u.Key),
			slog.Int64("size_bytes", size))
	}

	return uploads
}

// contentType maps artifact extensions to MIME types
func contentType(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
