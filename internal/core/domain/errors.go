// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced product or admin is absent
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a product id is already taken
	ErrConflict = errors.New("already exists")
	// ErrGuardViolation is returned when an invariant-preserving check rejects an action
	ErrGuardViolation = errors.New("guard violation")
	// ErrStaleDocument is returned by versioned repositories when the document
	// changed between load and save
	ErrStaleDocument = errors.New("document changed since it was loaded")
)

// ValidationError describes malformed or out-of-range input
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// StorageError wraps a failure of the underlying document storage
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err is, or wraps, a StorageError
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
