// internal/adapters/db/document_repository.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
)

const (
	documentsTable = "inventory_documents"

	// DefaultDocumentName is the row that holds the bot's inventory
	DefaultDocumentName = "inventory"
)

// DocumentRepository stores the inventory document as one JSONB row.
// Every save bumps the row version; a save carrying an old version is refused.
type DocumentRepository struct {
	db      *sql.DB
	name    string
	builder squirrel.StatementBuilderType
	logger  *slog.Logger
}

var _ ports.DocumentRepository = (*DocumentRepository)(nil)

// DocumentOption configures a DocumentRepository
type DocumentOption func(*DocumentRepository)

// WithDocumentName selects the row the repository reads and writes
func WithDocumentName(name string) DocumentOption {
	return func(r *DocumentRepository) {
		r.name = name
	}
}

// NewDocumentRepository creates a Postgres backed document repository
func NewDocumentRepository(sqlDB *sql.DB, logger *slog.Logger, opts ...DocumentOption) *DocumentRepository {
	r := &DocumentRepository{
		db:      sqlDB,
		name:    DefaultDocumentName,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.With(slog.String("repository", "documents"), slog.String("document", r.name))
	return r
}

// Load reads the document, creating the default row when none exists and
// persisting any sections that had to be defaulted.
func (r *DocumentRepository) Load(ctx context.Context) (*domain.Document, error) {
	query, args, err := r.builder.
		Select("body", "version").
		From(documentsTable).
		Where(squirrel.Eq{"name": r.name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var (
		body    []byte
		version int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return r.create(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	doc, filled, err := domain.DecodeDocument(body)
	if err != nil {
		return nil, err
	}
	doc.Version = version

	if filled {
		if err := r.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to persist defaulted sections: %w", err)
		}
		r.logger.InfoContext(ctx, "filled missing document sections")
	}
	return doc, nil
}

func (r *DocumentRepository) create(ctx context.Context) (*domain.Document, error) {
	doc := domain.NewDocument()
	body, err := doc.Encode()
	if err != nil {
		return nil, err
	}

	query, args, err := r.builder.
		Insert(documentsTable).
		Columns("name", "body", "version").
		Values(r.name, string(body), 1).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// another process created the row first
		return r.Load(ctx)
	}

	r.logger.InfoContext(ctx, "created default inventory document")
	doc.Version = 1
	return doc, nil
}

// Save rewrites the document when its version still matches the stored one
func (r *DocumentRepository) Save(ctx context.Context, doc *domain.Document) error {
	body, err := doc.Encode()
	if err != nil {
		return err
	}

	query, args, err := r.builder.
		Update(documentsTable).
		Set("body", string(body)).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"name": r.name}).
		Where(squirrel.Eq{"version": doc.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		r.logger.DebugContext(ctx, "stale document save", slog.Int64("version", doc.Version))
		return domain.ErrStaleDocument
	}

	doc.Version++
	return nil
}
