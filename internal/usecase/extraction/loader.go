// Package extraction composes and observes the feature extractor.
package extraction

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/photomatch/internal/domain"
)

// BuildFunc constructs an extractor. It is called at most once per Loader.
type BuildFunc func() (domain.Extractor, error)

// Loader builds the shared extractor once. Every Get returns the same instance
// or the same construction error; the model is never loaded twice.
type Loader struct {
	build BuildFunc

	once sync.Once
	ext  domain.Extractor
	err  error
}

// NewLoader creates a loader around build.
func NewLoader(build BuildFunc) *Loader {
	return &Loader{build: build}
}

// Get returns the shared extractor, building it on the first call.
func (l *Loader) Get() (domain.Extractor, error) {
	l.once.Do(func() {
		l.ext, l.err = l.build()
		if l.err != nil {
			l.err = fmt.Errorf("load extractor: %w", l.err)
		}
	})
	return l.ext, l.err
}

// Extract implements domain.Extractor, building lazily when needed.
func (l *Loader) Extract(ctx context.Context, image []byte) ([]float32, error) {
	ext, err := l.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractorUnavailable, err)
	}
	return ext.Extract(ctx, image) //nolint:wrapcheck // transparent
}

// HealthCheck reports construction errors and forwards to the built extractor.
func (l *Loader) HealthCheck(ctx context.Context) error {
	ext, err := l.Get()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExtractorUnavailable, err)
	}
	if hc, ok := ext.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent
	}
	return nil
}
