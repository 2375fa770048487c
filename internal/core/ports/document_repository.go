// internal/core/ports/document_repository.go
package ports

import (
	"context"

	"github.com/ammerola/inventory-bot/internal/core/domain"
)

// DocumentRepository persists the inventory document as one unit.
// Load default-fills missing sections (persisting the completed document) and
// creates the default document when none exists. Save rewrites the whole
// document; versioned implementations return domain.ErrStaleDocument when
// doc.Version no longer matches the stored version.
type DocumentRepository interface {
	Load(ctx context.Context) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
}
