// internal/core/ports/storage.go
package ports

import (
	"context"
	"io"
	"time"
)

// BackupStorage stores backup and report objects off the bot host
type BackupStorage interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	DeleteMultiple(ctx context.Context, keys []string) error
	GetPresignedURL(ctx context.Context, key string, duration time.Duration) (string, error)
}
