package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/domain"
)

// Extractor sends images to an OpenAI-compatible embeddings endpoint serving
// a vision encoder (CLIP-style servers accept data URIs as input).
type Extractor struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// Config holds the remote extractor settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// NewExtractor creates an OpenAI-compatible image extractor.
func NewExtractor(cfg *Config) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     logger,
	}
}

// Extract implements domain.Extractor. The returned vector is not normalized.
func (e *Extractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image: %w", domain.ErrDecodeFailure)
	}

	req := openai.EmbeddingRequest{
		Input:          []string{dataURI(image)},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		e.logger.Debug("Remote extraction failed", zap.String("model", string(e.model)), zap.Error(err))
		return nil, parseAPIError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrExtractionFailure)
	}

	return resp.Data[0].Embedding, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Extractor) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w: %w", domain.ErrExtractorUnavailable, err)
	}
	return nil
}

// ModelID identifies the model for cache keys.
func (e *Extractor) ModelID() string {
	return "openai:" + string(e.model)
}

func dataURI(image []byte) string {
	mime := http.DetectContentType(image)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// parseAPIError extracts a human-readable error from the API response.
// 5xx and transport errors mean the backend is unavailable; 4xx mean the image was rejected.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrap := classify(reqErr.HTTPStatusCode)
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("extraction API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("extraction API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("extraction API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, classify(apiErr.HTTPStatusCode))
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("extraction request: %w", err)
	}
	return fmt.Errorf("extraction request failed: %w: %v", domain.ErrExtractorUnavailable, err)
}

func classify(status int) error {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return domain.ErrExtractorUnavailable
	}
	return domain.ErrExtractionFailure
}

// extractDetail extracts the "detail" field from a JSON error body (FastAPI-style servers).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
