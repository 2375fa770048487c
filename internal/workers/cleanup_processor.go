// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hibiken/asynq"

	"github.com/ammerola/inventory-bot/internal/core/ports"
)

// CleanupProcessor enforces backup retention
type CleanupProcessor struct {
	storage ports.BackupStorage
	keep    int
	logger  *slog.Logger
}

// NewCleanupProcessor creates a processor that keeps the newest keep backups
func NewCleanupProcessor(storage ports.BackupStorage, keep int, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		storage: storage,
		keep:    keep,
		logger:  logger.With(slog.String("processor", "cleanup")),
	}
}

// PruneBackups handles backup:prune
func (p *CleanupProcessor) PruneBackups(ctx context.Context, t *asynq.Task) error {
	var payload PrunePayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	keep := p.keep
	if payload.Keep > 0 {
		keep = payload.Keep
	}
	if keep <= 0 {
		p.logger.InfoContext(ctx, "backup retention disabled")
		return nil
	}

	keys, err := p.storage.List(ctx, BackupPrefix)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(keys) <= keep {
		p.logger.DebugContext(ctx, "nothing to prune", slog.Int("backups", len(keys)))
		return nil
	}

	sort.Strings(keys)
	stale := keys[:len(keys)-keep]
	if err := p.storage.DeleteMultiple(ctx, stale); err != nil {
		return fmt.Errorf("failed to delete old backups: %w", err)
	}

	writeResult(t, map[string]int{"deleted": len(stale), "kept": keep})
	p.logger.InfoContext(ctx, "old backups pruned",
		slog.Int("deleted", len(stale)),
		slog.Int("kept", keep))
	return nil
}
