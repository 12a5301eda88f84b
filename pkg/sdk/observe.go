package photomatch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/photomatch/internal/domain"
)

// Operation labels.
const (
	opRecognize         = "recognize"
	opIngest            = "ingest"
	opHealth            = "health"
	opProductCreate     = "product.create"
	opProductGet        = "product.get"
	opProductList       = "product.list"
	opProductUpdate     = "product.update"
	opProductDelete     = "product.delete"
	opProductDeleteMany = "product.delete_many"
	opImageUpload       = "image.upload"
	opImageDelete       = "image.delete"
	opImageReorder      = "image.reorder"
)

// Status labels. Caller faults are split from failures of the catalog itself.
const (
	statusOK          = "ok"
	statusNotFound    = "not_found"
	statusRejected    = "rejected"
	statusUnavailable = "unavailable"
	statusError       = "error"
)

func statusOf(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, domain.ErrNotFound):
		return statusNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrDecodeFailure),
		errors.Is(err, domain.ErrInvalidArchive),
		errors.Is(err, domain.ErrIntegrityConflict):
		return statusRejected
	case errors.Is(err, domain.ErrExtractorUnavailable):
		return statusUnavailable
	default:
		return statusError
	}
}

// sdkMetrics holds the SDK collectors. Durations span a cache hit up to a cold
// model inference over a large archive.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photomatch",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Catalog operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "photomatch",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "Catalog operation duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or points it at the collector already
// registered under the same descriptor.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("photomatch: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("photomatch: metric registered with incompatible type %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts catalog operations. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// observe records one operation. attrs are extra slog key/value pairs.
// Caller faults log at Info, catalog failures at Warn.
func (o *observer) observe(op string, start time.Time, err error, attrs ...any) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status := statusOf(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}

	args := append([]any{"op", op, "status", status, "duration", dur}, attrs...)
	switch status {
	case statusOK:
		o.logger.Debug("catalog operation", args...)
	case statusNotFound, statusRejected:
		o.logger.Info("catalog operation rejected", append(args, "error", err)...)
	default:
		o.logger.Warn("catalog operation failed", append(args, "error", err)...)
	}
}
