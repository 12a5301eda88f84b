package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/domain"
)

// embeddingResponse mirrors the OpenAI-compatible API embedding response.
type embeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func newServer(t *testing.T, handler http.HandlerFunc) *Extractor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewExtractor(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "clip-vit-b32",
		Logger:  zap.NewNop(),
	})
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n0000")

func TestExtractor_Extract(t *testing.T) {
	expected := []float32{0.1, 0.2, 0.3}

	ext := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Input) != 1 || !strings.HasPrefix(req.Input[0], "data:image/png;base64,") {
			t.Errorf("expected a PNG data URI, got %v", req.Input)
		}
		if req.Model != "clip-vit-b32" {
			t.Errorf("model = %s", req.Model)
		}

		resp := embeddingResponse{Object: "list", Model: req.Model}
		resp.Data = append(resp.Data, struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}{Object: "embedding", Embedding: expected})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	vec, err := ext.Extract(context.Background(), pngMagic)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(vec) != len(expected) {
		t.Fatalf("expected %d dimensions, got %d", len(expected), len(vec))
	}
	for i, v := range vec {
		if v != expected[i] {
			t.Errorf("vec[%d] = %f, expected %f", i, v, expected[i])
		}
	}
}

func TestExtractor_EmptyResponse(t *testing.T) {
	ext := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[],"model":"m"}`))
	})

	_, err := ext.Extract(context.Background(), pngMagic)
	if !errors.Is(err, domain.ErrExtractionFailure) {
		t.Fatalf("expected ErrExtractionFailure, got %v", err)
	}
}

func TestExtractor_ClientErrorIsExtractionFailure(t *testing.T) {
	ext := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"cannot decode image"}`))
	})

	_, err := ext.Extract(context.Background(), pngMagic)
	if !errors.Is(err, domain.ErrExtractionFailure) {
		t.Fatalf("expected ErrExtractionFailure, got %v", err)
	}
}

func TestExtractor_ServerErrorIsUnavailable(t *testing.T) {
	ext := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`overloaded`))
	})

	_, err := ext.Extract(context.Background(), pngMagic)
	if !errors.Is(err, domain.ErrExtractorUnavailable) {
		t.Fatalf("expected ErrExtractorUnavailable, got %v", err)
	}
}

func TestExtractor_EmptyImage(t *testing.T) {
	ext := NewExtractor(&Config{BaseURL: "http://127.0.0.1:1", Model: "m"})
	if _, err := ext.Extract(context.Background(), nil); !errors.Is(err, domain.ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
}

func TestExtractor_HealthCheck(t *testing.T) {
	ext := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})

	if err := ext.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"bad"}`)); got != "bad" {
		t.Errorf("extractDetail = %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("extractDetail = %q", got)
	}
}
