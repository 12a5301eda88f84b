// Package onnx runs the feature model locally through ONNX Runtime.
package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/imageproc"
)

// Config holds the local model settings.
type Config struct {
	ModelPath   string
	LibraryPath string // path to libonnxruntime; empty uses the platform default
	InputName   string
	OutputName  string
	Model       domain.ExtractorConfig
	Logger      *zap.Logger
}

// The runtime environment is process-wide and is initialized at most once.
var (
	envOnce sync.Once
	envErr  error
)

func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return envErr
}

// Extractor is a read-only inference session, safe for concurrent Extract calls.
type Extractor struct {
	session *ort.DynamicAdvancedSession
	cfg     domain.ExtractorConfig
	logger  *zap.Logger
}

// NewExtractor loads the model. Loading is expensive; construct once and share.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("ONNX model loaded",
		zap.String("model", cfg.Model.Model),
		zap.String("path", cfg.ModelPath),
		zap.Int("dimensions", cfg.Model.Dimensions),
	)

	return &Extractor{session: session, cfg: cfg.Model, logger: logger}, nil
}

// Extract implements domain.Extractor. The returned vector is not normalized.
func (e *Extractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imageproc.Decode(image)
	if err != nil {
		return nil, err
	}
	data := Preprocess(img, e.cfg)

	size := int64(e.cfg.InputSize)
	in, err := ort.NewTensor(ort.NewShape(1, 3, size, size), data)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w: %v", domain.ErrExtractionFailure, err)
	}
	defer func() { _ = in.Destroy() }()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.cfg.Dimensions)))
	if err != nil {
		return nil, fmt.Errorf("output tensor: %w: %v", domain.ErrExtractionFailure, err)
	}
	defer func() { _ = out.Destroy() }()

	if err := e.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("inference: %w: %v", domain.ErrExtractionFailure, err)
	}

	vec := make([]float32, e.cfg.Dimensions)
	copy(vec, out.GetData())
	return vec, nil
}

// HealthCheck reports whether the session is loaded.
func (e *Extractor) HealthCheck(_ context.Context) error {
	if e.session == nil {
		return domain.ErrExtractorUnavailable
	}
	return nil
}

// ModelID identifies the model for cache keys.
func (e *Extractor) ModelID() string {
	return "onnx:" + e.cfg.Model
}

// Close releases the session.
func (e *Extractor) Close() error {
	if e.session == nil {
		return nil
	}
	if err := e.session.Destroy(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
