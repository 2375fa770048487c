// internal/handlers/import.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/inventory-bot/internal/core/ports"
	"github.com/ammerola/inventory-bot/internal/workers"
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ImportEnqueuer queues spreadsheet imports
type ImportEnqueuer interface {
	EnqueueImport(ctx context.Context, key string, requestedBy int64) (string, error)
}

// TaskInspector reads the state of queued tasks
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// ImportHandler accepts product spreadsheets from admins and queues them for the worker
type ImportHandler struct {
	tasks       ImportEnqueuer
	inspector   TaskInspector
	storage     ports.BackupStorage
	gate        ports.AuthorizationGate
	queue       string
	maxFileSize int64
	logger      *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(
	tasks ImportEnqueuer,
	inspector TaskInspector,
	storage ports.BackupStorage,
	gate ports.AuthorizationGate,
	queue string,
	maxFileSize int64,
	logger *slog.Logger,
) *ImportHandler {
	return &ImportHandler{
		tasks:       tasks,
		inspector:   inspector,
		storage:     storage,
		gate:        gate,
		queue:       queue,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("handler", "import")),
	}
}

// ImportExcel handles POST /api/v1/import/xlsx
func (h *ImportHandler) ImportExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		h.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	requesterID, err := strconv.ParseInt(r.FormValue("requester_id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "requester_id is required")
		return
	}
	allowed, err := h.gate.IsAdmin(ctx, requesterID)
	if err != nil {
		h.logger.ErrorContext(ctx, "admin check failed", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to verify requester")
		return
	}
	if !allowed {
		h.respondError(w, http.StatusForbidden, "Sorry, this command is for admins only.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") &&
		header.Header.Get("Content-Type") != contentTypeXLSX {
		h.respondError(w, http.StatusBadRequest, "Only .xlsx files are allowed")
		return
	}

	key := fmt.Sprintf("%s%s_%s", workers.ImportPrefix, uuid.New().String(), filepath.Base(header.Filename))
	if _, err := h.storage.Upload(ctx, key, file, contentTypeXLSX); err != nil {
		h.logger.ErrorContext(ctx, "failed to store upload", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	taskID, err := h.tasks.EnqueueImport(ctx, key, requesterID)
	if err != nil {
		if derr := h.storage.DeleteMultiple(ctx, []string{key}); derr != nil {
			h.logger.WarnContext(ctx, "failed to remove orphaned upload", slog.String("key", key))
		}
		h.logger.ErrorContext(ctx, "failed to queue import", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to queue import job")
		return
	}

	h.logger.InfoContext(ctx, "spreadsheet import queued",
		slog.String("task_id", taskID),
		slog.String("key", key),
		slog.Int64("requested_by", requesterID))

	h.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  taskID,
		"status":  "queued",
		"message": "Spreadsheet import has been queued for processing",
	})
}

// ImportStatus handles GET /api/v1/import/{jobId}
func (h *ImportHandler) ImportStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("jobId")

	info, err := h.inspector.GetTaskInfo(h.queue, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			h.respondError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to get job status",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to get job status")
		return
	}

	status := map[string]interface{}{
		"job_id":  info.ID,
		"status":  info.State.String(),
		"retried": info.Retried,
	}
	if info.LastErr != "" {
		status["last_error"] = info.LastErr
	}
	if len(info.Result) > 0 {
		status["result"] = json.RawMessage(info.Result)
	}
	h.respondJSON(w, http.StatusOK, status)
}

func (h *ImportHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ImportHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
