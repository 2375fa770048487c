// internal/core/ports/tasks.go
package ports

import "context"

// TaskEnqueuer hands long-running export work to the background worker
type TaskEnqueuer interface {
	EnqueueBackup(ctx context.Context, requestedBy int64) (string, error)
	EnqueueSpreadsheetReport(ctx context.Context, requestedBy int64) (string, error)
}
