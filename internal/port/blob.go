package port

import (
	"context"
	"io"
	"time"
)

type BlobStorage interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, paths ...string) error
	RemovePrefix(ctx context.Context, prefix string) error
}
