package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"github.com/sethvargo/go-retry"

	"github.com/kailas-cloud/photomatch/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// readinessInterval spaces PING attempts while waiting for the cache.
const readinessInterval = 100 * time.Millisecond

// Config holds connection parameters for the vector cache.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// KeyPrefix namespaces every key so the cache can share a server.
	KeyPrefix string
}

// Store is the vector cache over rueidis. Valkey speaks the same protocol.
type Store struct {
	client rueidis.Client
	prefix string
}

// NewStore connects to the cache. Blank addresses are ignored.
func NewStore(cfg Config) (*Store, error) {
	addrs := make([]string, 0, len(cfg.Addrs))
	for _, a := range cfg.Addrs {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("cache: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: connect %v: %w", addrs, err)
	}

	return &Store{client: client, prefix: cfg.KeyPrefix}, nil
}

// NewStoreForTest wraps a provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, keyPrefix string) *Store {
	return &Store{client: c, prefix: keyPrefix}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings immediately and then every readinessInterval until the
// cache answers. On timeout the last PING error is returned.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := retry.WithMaxDuration(timeout, retry.NewConstant(readinessInterval))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := s.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache not ready after %s: %w", timeout, err)
	}
	return nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}
