// internal/workers/tasks.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/inventory-bot/internal/core/ports"
)

const (
	TypeBackupSnapshot    = "backup:snapshot"
	TypeSpreadsheetReport = "report:xlsx"
	TypeBackupPrune       = "backup:prune"
	TypeExcelImport       = "excel:import"
)

// Object key prefixes in backup storage
const (
	BackupPrefix = "backups/"
	ReportPrefix = "reports/"
	ImportPrefix = "imports/"
)

// ExportPayload is carried by backup and spreadsheet report tasks
type ExportPayload struct {
	RequestedBy int64     `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// PrunePayload overrides the configured retention when Keep is positive
type PrunePayload struct {
	Keep int `json:"keep,omitempty"`
}

// ImportPayload names the sheet to import, either a storage key or a local path
type ImportPayload struct {
	Key         string `json:"key,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	RequestedBy int64  `json:"requested_by,omitempty"`
}

// NewBackupTask builds a backup:snapshot task
func NewBackupTask(requestedBy int64) (*asynq.Task, error) {
	return newTask(TypeBackupSnapshot, ExportPayload{RequestedBy: requestedBy, RequestedAt: time.Now().UTC()})
}

// NewSpreadsheetReportTask builds a report:xlsx task
func NewSpreadsheetReportTask(requestedBy int64) (*asynq.Task, error) {
	return newTask(TypeSpreadsheetReport, ExportPayload{RequestedBy: requestedBy, RequestedAt: time.Now().UTC()})
}

// NewPruneTask builds a backup:prune task
func NewPruneTask(keep int) (*asynq.Task, error) {
	return newTask(TypeBackupPrune, PrunePayload{Keep: keep})
}

// NewImportTask builds an excel:import task for a sheet held in backup storage
func NewImportTask(key string, requestedBy int64) (*asynq.Task, error) {
	if key == "" {
		return nil, fmt.Errorf("import key is required")
	}
	return newTask(TypeExcelImport, ImportPayload{Key: key, RequestedBy: requestedBy})
}

func newTask(typename string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typename, err)
	}
	return asynq.NewTask(typename, data), nil
}

func decodePayload(t *asynq.Task, v any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// writeResult records a task result when the task runs inside the server
func writeResult(t *asynq.Task, v any) {
	w := t.ResultWriter()
	if w == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = w.Write(data)
}

// TaskClient enqueues export work on the asynq queue
type TaskClient struct {
	client    *asynq.Client
	queue     string
	retention time.Duration
	logger    *slog.Logger
}

var _ ports.TaskEnqueuer = (*TaskClient)(nil)

// NewTaskClient wraps an asynq client; queue defaults to "default"
func NewTaskClient(client *asynq.Client, queue string, logger *slog.Logger) *TaskClient {
	if queue == "" {
		queue = "default"
	}
	return &TaskClient{
		client:    client,
		queue:     queue,
		retention: 24 * time.Hour,
		logger:    logger.With(slog.String("component", "task_client")),
	}
}

// EnqueueBackup schedules an off-site backup of the document
func (c *TaskClient) EnqueueBackup(ctx context.Context, requestedBy int64) (string, error) {
	task, err := NewBackupTask(requestedBy)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task, requestedBy)
}

// EnqueueSpreadsheetReport schedules an xlsx report upload
func (c *TaskClient) EnqueueSpreadsheetReport(ctx context.Context, requestedBy int64) (string, error) {
	task, err := NewSpreadsheetReportTask(requestedBy)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task, requestedBy)
}

// EnqueueImport schedules the import of a sheet already uploaded under key
func (c *TaskClient) EnqueueImport(ctx context.Context, key string, requestedBy int64) (string, error) {
	task, err := NewImportTask(key, requestedBy)
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task, requestedBy)
}

func (c *TaskClient) enqueue(ctx context.Context, task *asynq.Task, requestedBy int64) (string, error) {
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(c.retention),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}

	c.logger.InfoContext(ctx, "task enqueued",
		slog.String("type", task.Type()),
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue),
		slog.Int64("requester_id", requestedBy))
	return info.ID, nil
}
