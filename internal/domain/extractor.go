package domain

import (
	"context"
	"errors"
	"fmt"
)

// Extractor turns encoded image bytes into a feature vector.
// Implementations are shared across requests and must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}

// HealthChecker verifies extractor backend availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NormalizingExtractor is a domain decorator that enforces the catalog dimension
// and returns L2-normalized vectors.
type NormalizingExtractor struct {
	inner      Extractor
	dimensions int
}

// NewNormalizingExtractor wraps inner. dimensions <= 0 disables the dimension check.
func NewNormalizingExtractor(inner Extractor, dimensions int) *NormalizingExtractor {
	return &NormalizingExtractor{inner: inner, dimensions: dimensions}
}

// Extract delegates to the inner extractor and normalizes the result.
func (e *NormalizingExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	vec, err := e.inner.Extract(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("normalized extract: %w", err)
	}
	if e.dimensions > 0 && len(vec) != e.dimensions {
		return nil, fmt.Errorf("got %d dimensions, want %d: %w", len(vec), e.dimensions, ErrVectorDimMismatch)
	}
	return Normalize(vec), nil
}

// HealthCheck forwards to the inner extractor when it supports health checks.
func (e *NormalizingExtractor) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// ExtractionError classifies an extractor error for callers. Decode errors,
// unavailable backends, dimension mismatches and cancellation keep their kind;
// anything else becomes ErrExtractionFailure.
func ExtractionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDecodeFailure),
		errors.Is(err, ErrExtractorUnavailable),
		errors.Is(err, ErrVectorDimMismatch),
		errors.Is(err, ErrExtractionFailure),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrExtractionFailure, err)
	}
}
