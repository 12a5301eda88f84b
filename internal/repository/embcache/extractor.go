package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/db"
	"github.com/kailas-cloud/photomatch/internal/domain"
)

const cacheKeyPrefix = "photomatch:features:"

// store is the consumer interface for the feature cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedExtractor caches feature vectors keyed by model id and image content.
// Vectors of different models never share a key.
type CachedExtractor struct {
	inner      domain.Extractor
	store      store
	modelID    string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Extractor,
	s store,
	modelID string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedExtractor {
	return &CachedExtractor{
		inner:      inner,
		store:      s,
		modelID:    modelID,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Extract returns a cached vector or calls the inner extractor.
// Cache errors degrade to a miss.
func (c *CachedExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	key := c.cacheKey(image)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return vec, nil
	}

	c.incCache("miss")

	vec, err := c.inner.Extract(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("extract image: %w", err)
	}

	c.putToCache(ctx, key, vec)
	return vec, nil
}

// HealthCheck forwards to the inner extractor when it supports it.
func (c *CachedExtractor) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedExtractor) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedExtractor) cacheKey(image []byte) string {
	h := sha256.New()
	h.Write([]byte(c.modelID))
	h.Write([]byte{0})
	h.Write(image)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedExtractor) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached features", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := domain.DecodeVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached features", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return vec, true
}

func (c *CachedExtractor) putToCache(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, domain.EncodeVector(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache features", zap.String("key", key), zap.Error(err))
	}
}
