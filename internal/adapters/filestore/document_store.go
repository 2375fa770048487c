// internal/adapters/filestore/document_store.go
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// DocumentStore keeps the inventory document in a single JSON file.
// Every save rewrites the whole file through a temp file and a rename.
// Versions are tracked in process only.
type DocumentStore struct {
	path    string
	mu      sync.Mutex
	version int64
	logger  *slog.Logger
}

var _ ports.DocumentRepository = (*DocumentStore)(nil)

// NewDocumentStore creates a file backed document repository
func NewDocumentStore(path string, logger *slog.Logger) (*DocumentStore, error) {
	clean := filepath.Clean(strings.TrimSpace(path))
	if clean == "." || clean == "" {
		return nil, fmt.Errorf("document path is required")
	}
	return &DocumentStore{
		path:   clean,
		logger: logger.With(slog.String("component", "filestore"), slog.String("path", clean)),
	}, nil
}

// Path returns the file the document lives in
func (s *DocumentStore) Path() string {
	return s.path
}

// Load reads the document. A missing or empty file yields the default
// document, which is written out; missing sections are filled and persisted.
func (s *DocumentStore) Load(ctx context.Context) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		doc := domain.NewDocument()
		if err := s.writeLocked(doc); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "created default inventory document")
		doc.Version = s.version
		return doc, nil
	}

	doc, filled, err := domain.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if filled {
		if err := s.writeLocked(doc); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "filled missing document sections")
	}

	doc.Version = s.version
	return doc, nil
}

// Save rewrites the whole document. It returns domain.ErrStaleDocument when
// another save happened after doc was loaded.
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.Version != s.version {
		return domain.ErrStaleDocument
	}
	if err := s.writeLocked(doc); err != nil {
		return err
	}
	doc.Version = s.version
	return nil
}

func (s *DocumentStore) writeLocked(doc *domain.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := writeBytesAtomic(s.path, data); err != nil {
		return err
	}
	s.version++
	return nil
}

func writeBytesAtomic(path string, data []byte) error {
	parentDir := filepath.Dir(path)
	if err := os.MkdirAll(parentDir, dirPerm); err != nil {
		return fmt.Errorf("ensure dir %s: %w", parentDir, err)
	}

	tmp, err := os.CreateTemp(parentDir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("chmod temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", path, err)
	}
	return nil
}
