package domain

import (
	"context"
	"errors"
	"math"
	"testing"
)

const eps = 1e-6

func TestNormalize_UnitNorm(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(Norm(v)-1) > eps {
		t.Fatalf("expected unit norm, got %f", Norm(v))
	}
	if math.Abs(float64(v[0])-0.6) > eps || math.Abs(float64(v[1])-0.8) > eps {
		t.Errorf("unexpected vector: %v", v)
	}
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	for i, x := range v {
		if x != 0 {
			t.Fatalf("element %d = %f, want 0", i, x)
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []float32{1, 1}
	_ = Normalize(in)
	if in[0] != 1 || in[1] != 1 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestSimilarity_SelfIsOne(t *testing.T) {
	v := Normalize([]float32{0.2, -0.7, 1.3, 0.05})
	if s := Similarity(v, v); math.Abs(s-1) > eps {
		t.Errorf("similarity(v, v) = %f, want 1", s)
	}
}

func TestSimilarity_Orthogonal(t *testing.T) {
	if s := Similarity([]float32{1, 0}, []float32{0, 1}); s != 0 {
		t.Errorf("expected 0, got %f", s)
	}
}

func TestVectorCodec_LittleEndianNoPrefix(t *testing.T) {
	data := EncodeVector([]float32{1, -2.5})
	if len(data) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(data))
	}
	// 1.0f = 0x3F800000
	if data[0] != 0x00 || data[1] != 0x00 || data[2] != 0x80 || data[3] != 0x3F {
		t.Errorf("unexpected encoding of 1.0: % x", data[:4])
	}

	vec, err := DecodeVector(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[0] != 1 || vec[1] != -2.5 {
		t.Errorf("unexpected vector: %v", vec)
	}
}

func TestDecodeVector_BadLength(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for length not multiple of 4")
	}
}

// --- NormalizingExtractor ---

type stubExtractor struct {
	vec []float32
	err error
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte) ([]float32, error) {
	return s.vec, s.err
}

func TestNormalizingExtractor_Normalizes(t *testing.T) {
	e := NewNormalizingExtractor(&stubExtractor{vec: []float32{0, 5}}, 2)
	vec, err := e.Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[1] != 1 {
		t.Errorf("expected [0 1], got %v", vec)
	}
}

func TestNormalizingExtractor_DimensionMismatch(t *testing.T) {
	e := NewNormalizingExtractor(&stubExtractor{vec: []float32{1, 2, 3}}, 2)
	_, err := e.Extract(context.Background(), nil)
	if !errors.Is(err, ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestNormalizingExtractor_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("inference failed")
	e := NewNormalizingExtractor(&stubExtractor{err: innerErr}, 0)
	_, err := e.Extract(context.Background(), nil)
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
}

func TestNotFoundError_Unwraps(t *testing.T) {
	err := NewNotFound(KindImage, 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected errors.Is(err, ErrNotFound)")
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != 42 || nf.Kind != KindImage {
		t.Errorf("unexpected NotFoundError: %+v", nf)
	}
	if err.Error() != "image 42: not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestExtractionError(t *testing.T) {
	if ExtractionError(nil) != nil {
		t.Error("nil must stay nil")
	}
	if err := ExtractionError(ErrExtractorUnavailable); !errors.Is(err, ErrExtractorUnavailable) {
		t.Errorf("unavailable must keep its kind, got %v", err)
	}
	err := ExtractionError(errors.New("onnx: bad tensor"))
	if !errors.Is(err, ErrExtractionFailure) {
		t.Errorf("unknown errors become ErrExtractionFailure, got %v", err)
	}
}
