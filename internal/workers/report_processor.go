// internal/workers/report_processor.go
package workers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/inventory-bot/internal/core/ports"
	"github.com/ammerola/inventory-bot/internal/core/services"
)

const reportLinkTTL = 24 * time.Hour

// ReportResult is written as the task result of a spreadsheet report
type ReportResult struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// ReportProcessor renders the xlsx report and uploads it
type ReportProcessor struct {
	reports *services.ReportService
	storage ports.BackupStorage
	logger  *slog.Logger
}

// NewReportProcessor creates a new report processor
func NewReportProcessor(reports *services.ReportService, storage ports.BackupStorage, logger *slog.Logger) *ReportProcessor {
	return &ReportProcessor{
		reports: reports,
		storage: storage,
		logger:  logger.With(slog.String("processor", "report")),
	}
}

// ProcessSpreadsheet handles report:xlsx
func (p *ReportProcessor) ProcessSpreadsheet(ctx context.Context, t *asynq.Task) error {
	var payload ExportPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	att, err := p.reports.Spreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to build spreadsheet: %w", err)
	}

	key := ReportPrefix + att.Filename
	if _, err := p.storage.Upload(ctx, key, bytes.NewReader(att.Data), att.ContentType); err != nil {
		return fmt.Errorf("failed to upload report: %w", err)
	}

	result := ReportResult{Key: key}
	url, err := p.storage.GetPresignedURL(ctx, key, reportLinkTTL)
	if err != nil {
		// the report is stored; a missing link is not worth a retry
		p.logger.WarnContext(ctx, "failed to presign report",
			slog.String("key", key),
			slog.String("error", err.Error()))
	} else {
		result.URL = url
	}
	writeResult(t, result)

	p.logger.InfoContext(ctx, "spreadsheet report stored",
		slog.String("key", key),
		slog.Int64("requester_id", payload.RequestedBy))
	return nil
}
