package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/db"
)

type mockExtractor struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockExtractor) Extract(_ context.Context, _ []byte) ([]float32, error) {
	m.calls++
	return m.vec, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedExtractor(t *testing.T, inner *mockExtractor) (*CachedExtractor, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, "mobilenet_v3_small", time.Hour, nil, zap.NewNop())
	return ce, ms
}
