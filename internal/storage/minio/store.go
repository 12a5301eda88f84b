// Package minio stores image files in an S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kailas-cloud/photomatch/internal/storage"
)

// Compile-time check: Store implements storage.FileStore.
var _ storage.FileStore = (*Store)(nil)

// Config holds object storage connection parameters.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string // skips the bucket location lookup when set
	UseSSL    bool
}

// Store keeps files as objects; the storage key is the object name.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects to the endpoint. Call EnsureBucket before first use.
func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("minio ping: %w", err)
	}
	return nil
}

// Save uploads data under key.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	name, err := storage.CleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: storage.ContentType(name),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", name, err)
	}
	return nil
}

// Read downloads the object stored under key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	name, err := storage.CleanKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapErr(name, err)
	}
	defer func() { _ = obj.Close() }()

	// GetObject is lazy; errors surface on first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapErr(name, err)
	}
	return data, nil
}

// Remove deletes the object. Removing a missing object succeeds.
func (s *Store) Remove(ctx context.Context, key string) error {
	name, err := storage.CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		if errors.Is(mapErr(name, err), storage.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove object %s: %w", name, err)
	}
	return nil
}

func mapErr(name string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", name, storage.ErrNotExist)
	}
	return fmt.Errorf("get object %s: %w", name, err)
}
