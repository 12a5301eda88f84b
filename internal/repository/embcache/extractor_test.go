package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/domain"
)

func TestExtract_CacheMiss(t *testing.T) {
	inner := &mockExtractor{vec: []float32{0.6, 0.8}}
	ce, ms := newTestCachedExtractor(t, inner)

	var storedKey string
	var storedTTL time.Duration
	var stored []byte
	ms.setFn = func(_ context.Context, key string, value []byte, ttl time.Duration) error {
		storedKey, stored, storedTTL = key, value, ttl
		return nil
	}

	vec, err := ce.Extract(context.Background(), []byte("image-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.6 {
		t.Errorf("unexpected vector: %v", vec)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if !strings.HasPrefix(storedKey, cacheKeyPrefix) {
		t.Errorf("unexpected key: %s", storedKey)
	}
	if len(stored) != 8 {
		t.Errorf("cached blob len = %d, want 8", len(stored))
	}
	if storedTTL != time.Hour {
		t.Errorf("ttl = %v", storedTTL)
	}
}

func TestExtract_CacheHit(t *testing.T) {
	inner := &mockExtractor{vec: []float32{9, 9}}
	ce, ms := newTestCachedExtractor(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return domain.EncodeVector([]float32{1, 0}), nil
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		t.Error("set must not be called on hit")
		return nil
	}

	vec, err := ce.Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[0] != 1 || vec[1] != 0 {
		t.Errorf("expected cached vector, got %v", vec)
	}
	if inner.calls != 0 {
		t.Errorf("inner must not be called on hit")
	}
}

func TestExtract_CacheErrorDegradesToMiss(t *testing.T) {
	inner := &mockExtractor{vec: []float32{1}}
	ce, ms := newTestCachedExtractor(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("connection refused")
	}

	vec, err := ce.Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("cache failures must not fail extraction: %v", err)
	}
	if len(vec) != 1 || inner.calls != 1 {
		t.Errorf("expected inner result, calls=%d", inner.calls)
	}
}

func TestExtract_CorruptCacheEntry(t *testing.T) {
	inner := &mockExtractor{vec: []float32{1}}
	ce, ms := newTestCachedExtractor(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	if _, err := ce.Extract(context.Background(), []byte("img")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("corrupt entry must fall back to inner")
	}
}

func TestExtract_InnerError(t *testing.T) {
	inner := &mockExtractor{err: domain.ErrExtractionFailure}
	ce, _ := newTestCachedExtractor(t, inner)

	_, err := ce.Extract(context.Background(), []byte("img"))
	if !errors.Is(err, domain.ErrExtractionFailure) {
		t.Fatalf("expected ErrExtractionFailure, got %v", err)
	}
}

func TestCacheKey_DependsOnModel(t *testing.T) {
	inner := &mockExtractor{}
	a := New(inner, &mockKVStore{}, "model-a", 0, nil, zap.NewNop())
	b := New(inner, &mockKVStore{}, "model-b", 0, nil, zap.NewNop())

	img := []byte("same image")
	if a.cacheKey(img) == b.cacheKey(img) {
		t.Error("different models must not share cache keys")
	}
	if a.cacheKey(img) != a.cacheKey(img) {
		t.Error("cache key must be deterministic")
	}
}

func TestExtract_CountsHitsAndMisses(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	inner := &mockExtractor{vec: []float32{1}}
	cache := map[string][]byte{}
	ms := &mockKVStore{
		getFn: func(_ context.Context, key string) ([]byte, error) {
			if v, ok := cache[key]; ok {
				return v, nil
			}
			return nil, nil
		},
		setFn: func(_ context.Context, key string, value []byte, _ time.Duration) error {
			cache[key] = value
			return nil
		},
	}
	ce := New(inner, ms, "m", 0, counter, zap.NewNop())

	_, _ = ce.Extract(context.Background(), []byte("x"))
	_, _ = ce.Extract(context.Background(), []byte("x"))

	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("hit = %v, want 1", got)
	}
}
