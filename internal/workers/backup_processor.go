// internal/workers/backup_processor.go
package workers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/inventory-bot/internal/core/ports"
)

// BackupResult is written as the task result of a snapshot
type BackupResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Products int    `json:"products"`
	Bytes    int    `json:"bytes"`
}

// BackupProcessor copies the inventory document to backup storage
type BackupProcessor struct {
	store   ports.InventoryStore
	storage ports.BackupStorage
	now     func() time.Time
	logger  *slog.Logger
}

// NewBackupProcessor creates a new backup processor
func NewBackupProcessor(store ports.InventoryStore, storage ports.BackupStorage, logger *slog.Logger) *BackupProcessor {
	return &BackupProcessor{
		store:   store,
		storage: storage,
		now:     time.Now,
		logger:  logger.With(slog.String("processor", "backup")),
	}
}

// BackupKey names a snapshot object; keys sort in creation order
func BackupKey(at time.Time) string {
	return fmt.Sprintf("%sinventory_data_%s_%s.json", BackupPrefix, at.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
}

// ProcessBackup handles backup:snapshot
func (p *BackupProcessor) ProcessBackup(ctx context.Context, t *asynq.Task) error {
	var payload ExportPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	doc, err := p.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read inventory: %w", err)
	}
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode inventory: %w", err)
	}

	key := BackupKey(p.now())
	location, err := p.storage.Upload(ctx, key, bytes.NewReader(data), "application/json")
	if err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	result := BackupResult{Key: key, Location: location, Products: len(doc.Products), Bytes: len(data)}
	writeResult(t, result)

	p.logger.InfoContext(ctx, "backup stored",
		slog.String("key", key),
		slog.Int("products", result.Products),
		slog.Int64("requester_id", payload.RequestedBy))
	return nil
}
