package minio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/kailas-cloud/photomatch/internal/storage"
)

// --- S3 stub ---

type s3Object struct {
	data        []byte
	contentType string
}

// s3Stub serves the path-style subset of the S3 API the store uses.
type s3Stub struct {
	mu          sync.Mutex
	buckets     map[string]bool
	objects     map[string]s3Object
	makeBuckets int
	deny        bool
}

func newS3Stub() *s3Stub {
	return &s3Stub{buckets: map[string]bool{}, objects: map[string]s3Object{}}
}

func (s *s3Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if s.deny {
		writeS3Error(w, http.StatusForbidden, "AccessDenied", bucket, key)
		return
	}

	if key == "" {
		switch r.Method {
		case http.MethodHead:
			if !s.buckets[bucket] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			s.buckets[bucket] = true
			s.makeBuckets++
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if !s.buckets[bucket] {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket", bucket, key)
		return
	}
	name := bucket + "/" + key

	switch r.Method {
	case http.MethodPut:
		data, err := readPayload(r)
		if err != nil {
			writeS3Error(w, http.StatusBadRequest, "IncompleteBody", bucket, key)
			return
		}
		s.objects[name] = s3Object{data: data, contentType: r.Header.Get("Content-Type")}
		w.Header().Set("ETag", `"stub"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		obj, ok := s.objects[name]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey", bucket, key)
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		w.Header().Set("ETag", `"stub"`)
		w.Header().Set("Last-Modified", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(obj.data)
	case http.MethodDelete:
		delete(s.objects, name)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *s3Stub) bucketsMade() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.makeBuckets
}

func (s *s3Stub) object(name string) (s3Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[name]
	return obj, ok
}

// readPayload decodes aws-chunked bodies sent with streaming signatures.
func readPayload(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return io.ReadAll(r.Body)
	}
	br := bufio.NewReader(r.Body)
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, err
		}
		if _, err := br.Discard(2); err != nil {
			return nil, err
		}
	}
}

func writeS3Error(w http.ResponseWriter, status int, code, bucket, key string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w,
		`<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><BucketName>%s</BucketName><Key>%s</Key></Error>`,
		code, code, bucket, key)
}

// --- Helpers ---

func newTestStore(t *testing.T, stub *s3Stub) *Store {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	s, err := New(Config{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "photomatch",
		SecretKey: "photomatch-secret",
		Bucket:    "photos",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// --- Tests ---

func TestMapErr_NoSuchKey(t *testing.T) {
	err := mapErr("uploads/a.jpg", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound})
	if !errors.Is(err, storage.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMapErr_Other(t *testing.T) {
	err := mapErr("uploads/a.jpg", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden})
	if errors.Is(err, storage.ErrNotExist) {
		t.Error("AccessDenied must not map to ErrNotExist")
	}
}

func TestNew_NoNetworkOnConstruct(t *testing.T) {
	if _, err := New(Config{Endpoint: "localhost:9000", Bucket: "photos"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureBucket(t *testing.T) {
	stub := newS3Stub()
	s := newTestStore(t, stub)
	ctx := context.Background()

	if err := s.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}
	if err := s.EnsureBucket(ctx); err != nil {
		t.Fatalf("second EnsureBucket: %v", err)
	}
	if n := stub.bucketsMade(); n != 1 {
		t.Errorf("bucket created %d times, want 1", n)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestSaveReadRemove(t *testing.T) {
	stub := newS3Stub()
	s := newTestStore(t, stub)
	ctx := context.Background()
	if err := s.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}

	// Larger than one signed chunk.
	data := bytes.Repeat([]byte("jpeg"), 40_000)
	if err := s.Save(ctx, "uploads/./1_a.jpg", data); err != nil {
		t.Fatalf("Save: %v", err)
	}

	obj, ok := stub.object("photos/uploads/1_a.jpg")
	if !ok {
		t.Fatal("object not stored under the cleaned key")
	}
	if !bytes.Equal(obj.data, data) {
		t.Errorf("stored %d bytes, want %d", len(obj.data), len(data))
	}
	if obj.contentType != "image/jpeg" {
		t.Errorf("content type = %q", obj.contentType)
	}

	got, err := s.Read(ctx, "uploads/1_a.jpg")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read %d bytes, want %d", len(got), len(data))
	}

	if err := s.Remove(ctx, "uploads/1_a.jpg"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Read(ctx, "uploads/1_a.jpg"); !errors.Is(err, storage.ErrNotExist) {
		t.Errorf("Read after remove: expected ErrNotExist, got %v", err)
	}
	if err := s.Remove(ctx, "uploads/1_a.jpg"); err != nil {
		t.Errorf("removing a missing object must succeed: %v", err)
	}
}

func TestSave_InvalidKey(t *testing.T) {
	s := newTestStore(t, newS3Stub())
	if err := s.Save(context.Background(), "../escape.jpg", []byte("x")); err == nil {
		t.Fatal("expected invalid key error")
	}
}

func TestRead_AccessDenied(t *testing.T) {
	stub := newS3Stub()
	stub.deny = true
	s := newTestStore(t, stub)

	_, err := s.Read(context.Background(), "uploads/1_a.jpg")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, storage.ErrNotExist) {
		t.Errorf("AccessDenied must not map to ErrNotExist: %v", err)
	}
	if err := s.EnsureBucket(context.Background()); err == nil {
		t.Error("EnsureBucket: expected error")
	}
}
