package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing product or image.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDecodeFailure signals unreadable or corrupt image bytes.
	ErrDecodeFailure = errors.New("image decode failed")
	// ErrExtractionFailure signals a model inference error.
	ErrExtractionFailure = errors.New("feature extraction failed")
	// ErrInvalidArchive signals that the upload is not a readable zip container.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrIntegrityConflict signals a violated storage constraint.
	ErrIntegrityConflict = errors.New("integrity conflict")
	// ErrVectorDimMismatch signals a vector that does not match the catalog dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrExtractorUnavailable signals that the extractor backend could not be loaded or reached.
	ErrExtractorUnavailable = errors.New("extractor unavailable")
)

// Resource kinds carried by NotFoundError.
const (
	KindProduct = "product"
	KindImage   = "image"
)

// NotFoundError wraps ErrNotFound with the missing resource.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Kind, e.ID, ErrNotFound.Error())
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound creates a not-found error for the given resource.
func NewNotFound(kind string, id int64) error {
	return &NotFoundError{Kind: kind, ID: id}
}
