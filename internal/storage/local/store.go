// Package local stores image files on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	retry "github.com/sethvargo/go-retry"

	"github.com/kailas-cloud/photomatch/internal/storage"
)

// Compile-time check: Store implements storage.FileStore.
var _ storage.FileStore = (*Store)(nil)

const (
	defaultRetries = 3
	defaultBackoff = 50 * time.Millisecond
)

// Store keeps files under a root directory. Transient IO errors are retried
// with Fibonacci backoff.
type Store struct {
	root       string
	maxRetries uint64
	backoff    time.Duration
}

// Option configures Store.
type Option func(*Store)

// WithRetry overrides retry attempts and the base backoff.
func WithRetry(maxRetries uint64, backoff time.Duration) Option {
	return func(s *Store) {
		s.maxRetries = maxRetries
		s.backoff = backoff
	}
}

// New creates a disk store rooted at root.
func New(root string, opts ...Option) *Store {
	s := &Store{root: root, maxRetries: defaultRetries, backoff: defaultBackoff}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save writes data atomically: a temp file in the target dir is renamed into place.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)

	return s.retry(ctx, func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		tmp, err := os.CreateTemp(dir, ".upload-*")
		if err != nil {
			return err
		}
		tmpName := tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			return err
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmpName)
			return err
		}
		if err := os.Rename(tmpName, full); err != nil {
			_ = os.Remove(tmpName)
			return err
		}
		return nil
	})
}

// Read returns the stored bytes or storage.ErrNotExist.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.retry(ctx, func() error {
		var rerr error
		data, rerr = os.ReadFile(full)
		return rerr
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotExist)
	}
	return data, err
}

// Remove deletes a file. A missing file is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}

	err = s.retry(ctx, func() error { return os.Remove(full) })
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) resolve(key string) (string, error) {
	cleaned, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *Store) retry(ctx context.Context, op func() error) error {
	b := retry.WithMaxRetries(s.maxRetries, retry.NewFibonacci(s.backoff))
	return retry.Do(ctx, b, func(_ context.Context) error {
		err := op()
		if shouldRetry(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// shouldRetry treats anything but missing, existing and permission errors as transient.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, fs.ErrNotExist) &&
		!errors.Is(err, fs.ErrExist) &&
		!errors.Is(err, fs.ErrPermission)
}
