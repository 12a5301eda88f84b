package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/metrics"
)

// DefaultMaxConcurrency bounds parallel inference when not configured.
const DefaultMaxConcurrency = 2

// InstrumentedExtractor wraps an Extractor with a concurrency limit, logging and metrics.
// Inference is CPU-bound; the weighted semaphore keeps it from starving request handling.
type InstrumentedExtractor struct {
	inner   domain.Extractor
	backend string
	sem     *semaphore.Weighted
	logger  *zap.Logger
}

// NewInstrumentedExtractor wraps inner. maxConcurrency <= 0 uses DefaultMaxConcurrency.
func NewInstrumentedExtractor(
	inner domain.Extractor, backend string, maxConcurrency int, logger *zap.Logger,
) *InstrumentedExtractor {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &InstrumentedExtractor{
		inner:   inner,
		backend: backend,
		sem:     semaphore.NewWeighted(int64(maxConcurrency)),
		logger:  logger,
	}
}

// Extract waits for a free slot, delegates to the inner extractor and records the outcome.
func (p *InstrumentedExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	start := time.Now()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.record("error", "canceled", start)
		return nil, fmt.Errorf("wait for extractor: %w", err)
	}
	metrics.ExtractionInflight.Inc()
	vec, err := p.inner.Extract(ctx, image)
	metrics.ExtractionInflight.Dec()
	p.sem.Release(1)

	duration := time.Since(start)

	if err != nil {
		p.record("error", errorType(err), start)
		p.logger.Warn("Feature extraction failed",
			zap.String("backend", p.backend),
			zap.Int("bytes", len(image)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("extract: %w", err)
	}

	p.record("success", "", start)
	p.logger.Debug("Feature extraction completed",
		zap.String("backend", p.backend),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(vec)),
	)
	return vec, nil
}

// HealthCheck forwards to the inner extractor when it supports it.
func (p *InstrumentedExtractor) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (p *InstrumentedExtractor) record(status, errType string, start time.Time) {
	metrics.ExtractionRequestsTotal.WithLabelValues(p.backend, status).Inc()
	metrics.ExtractionDuration.WithLabelValues(p.backend).Observe(time.Since(start).Seconds())
	if errType != "" {
		metrics.ExtractionErrorsTotal.WithLabelValues(p.backend, errType).Inc()
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, domain.ErrDecodeFailure):
		return "decode"
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return "dimension"
	case errors.Is(err, domain.ErrExtractorUnavailable):
		return "unavailable"
	default:
		return "inference"
	}
}
