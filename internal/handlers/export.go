// internal/handlers/export.go
package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	redis_a "github.com/ammerola/inventory-bot/internal/adapters/redis_adapter"
	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
	"github.com/ammerola/inventory-bot/internal/core/services"
)

const (
	msgReportAttached   = "Here is the inventory report."
	msgBackupAttached   = "Here is the current data backup."
	msgSpreadsheetQueue = "A spreadsheet version of the report is being prepared and will be stored with the other reports."
	msgBackupQueued     = "An off-site copy of this backup has been queued."
	msgAlreadyQueued    = "A %s was requested a moment ago and is still being prepared."
)

const defaultExportWindow = time.Minute

// ExportHandler builds the report and backup replies and, when a task queue is
// configured, hands the heavy exports to the worker
type ExportHandler struct {
	reports *services.ReportService
	tasks   ports.TaskEnqueuer
	cache   ports.CacheRepository
	window  time.Duration
	logger  *slog.Logger
}

// ExportOption configures an ExportHandler
type ExportOption func(*ExportHandler)

// WithTaskQueue enables background exports
func WithTaskQueue(tasks ports.TaskEnqueuer) ExportOption {
	return func(h *ExportHandler) { h.tasks = tasks }
}

// WithExportDedupe suppresses repeated enqueues from the same requester within window
func WithExportDedupe(cache ports.CacheRepository, window time.Duration) ExportOption {
	return func(h *ExportHandler) {
		h.cache = cache
		if window > 0 {
			h.window = window
		}
	}
}

// NewExportHandler creates a new export handler
func NewExportHandler(reports *services.ReportService, logger *slog.Logger, opts ...ExportOption) *ExportHandler {
	h := &ExportHandler{
		reports: reports,
		window:  defaultExportWindow,
		logger:  logger.With(slog.String("handler", "export")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GenerateReport attaches the text report and queues the spreadsheet version
func (h *ExportHandler) GenerateReport(ctx context.Context, requesterID int64) domain.Response {
	att, err := h.reports.TextReport(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to render report", slog.String("error", err.Error()))
		return domain.Failure(services.MsgActionFailed)
	}

	resp := domain.Reply(domain.Message{Text: msgReportAttached, Attachment: att})
	if msg, ok := h.enqueue(ctx, "report", "spreadsheet report", requesterID, h.tasksReport); ok {
		resp.Messages = append(resp.Messages, msg)
	}
	return resp
}

// BackupData attaches the persisted document and queues an off-site copy
func (h *ExportHandler) BackupData(ctx context.Context, requesterID int64) domain.Response {
	att, err := h.reports.Backup(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to render backup", slog.String("error", err.Error()))
		return domain.Failure(services.MsgActionFailed)
	}

	resp := domain.Reply(domain.Message{Text: msgBackupAttached, Attachment: att})
	if msg, ok := h.enqueue(ctx, "backup", "backup", requesterID, h.tasksBackup); ok {
		resp.Messages = append(resp.Messages, msg)
	}
	return resp
}

func (h *ExportHandler) tasksReport(ctx context.Context, requesterID int64) (string, error) {
	return h.tasks.EnqueueSpreadsheetReport(ctx, requesterID)
}

func (h *ExportHandler) tasksBackup(ctx context.Context, requesterID int64) (string, error) {
	return h.tasks.EnqueueBackup(ctx, requesterID)
}

// enqueue returns the follow-up message to send, if any. Queue failures only
// lose the background copy; the attachment has already been produced.
func (h *ExportHandler) enqueue(ctx context.Context, kind, label string, requesterID int64,
	submit func(context.Context, int64) (string, error)) (domain.Message, bool) {
	if h.tasks == nil {
		return domain.Message{}, false
	}

	if !h.claim(ctx, kind, requesterID) {
		return domain.Textf(msgAlreadyQueued, label), true
	}

	taskID, err := submit(ctx, requesterID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to enqueue export",
			slog.String("kind", kind),
			slog.String("error", err.Error()))
		return domain.Message{}, false
	}

	h.logger.InfoContext(ctx, "export queued",
		slog.String("kind", kind),
		slog.String("task_id", taskID))

	if kind == "backup" {
		return domain.Text(msgBackupQueued), true
	}
	return domain.Text(msgSpreadsheetQueue), true
}

// claim takes the per-requester export slot. Without a cache, or when the
// cache is unreachable, every request is let through.
func (h *ExportHandler) claim(ctx context.Context, kind string, requesterID int64) bool {
	if h.cache == nil {
		return true
	}
	key := redis_a.BuildKey(redis_a.PrefixExport, kind, strconv.FormatInt(requesterID, 10))
	ok, err := h.cache.SetNX(ctx, key, time.Now().Unix(), h.window)
	if err != nil {
		h.logger.WarnContext(ctx, "export dedupe unavailable", slog.String("error", err.Error()))
		return true
	}
	return ok
}
