package search

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
)

// --- Mocks ---

type mockSource struct {
	candidates []product.Candidate
	paths      map[int64][]string
	err        error
}

func (m *mockSource) AllVectors(_ context.Context) ([]product.Candidate, error) {
	return m.candidates, m.err
}

func (m *mockSource) ImagePaths(_ context.Context, productID int64) ([]string, error) {
	return m.paths[productID], nil
}

type mockExtractor struct {
	vec []float32
	err error
	got []byte
}

func (m *mockExtractor) Extract(_ context.Context, image []byte) ([]float32, error) {
	m.got = image
	return m.vec, m.err
}

// --- Helpers ---

func prod(id int64, model string) product.Product {
	return product.Reconstruct(id, model, "", 0, "", time.Time{}, nil)
}

// vecWithScore returns a unit vector whose dot product with [1, 0] is score.
func vecWithScore(score float32) []float32 {
	return domain.Normalize([]float32{score, float32(math.Sqrt(1 - float64(score*score)))})
}

func cand(p product.Product, imageID int64, path string, vec []float32) product.Candidate {
	return product.Candidate{Product: p, ImageID: imageID, ImagePath: path, Vector: vec}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// --- Rank ---

func TestRank_BestImagePerProduct(t *testing.T) {
	query := []float32{1, 0}
	a, b := prod(1, "A"), prod(2, "B")

	got := Rank(query, []product.Candidate{
		cand(a, 10, "a-low.jpg", vecWithScore(0.4)),
		cand(b, 20, "b.jpg", vecWithScore(0.6)),
		cand(a, 11, "a-high.jpg", vecWithScore(0.9)),
	}, 5)

	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %d", len(got))
	}
	if got[0].ProductID() != 1 || got[1].ProductID() != 2 {
		t.Fatalf("unexpected ranking: %d, %d", got[0].ProductID(), got[1].ProductID())
	}
	if got[0].BestImagePath() != "a-high.jpg" || got[0].BestImageID() != 11 {
		t.Errorf("best image = %s (%d), want a-high.jpg", got[0].BestImagePath(), got[0].BestImageID())
	}
	if s := got[0].Score(); s < 0.89 || s > 0.91 {
		t.Errorf("score = %f, want ~0.9", s)
	}
}

func TestRank_TiesKeepFirstSeen(t *testing.T) {
	query := []float32{1, 0}
	v := []float32{1, 0}
	a, b := prod(1, "A"), prod(2, "B")

	got := Rank(query, []product.Candidate{
		cand(a, 10, "first.jpg", v),
		cand(a, 11, "second.jpg", v),
		cand(b, 20, "b.jpg", v),
	}, 5)

	if got[0].BestImagePath() != "first.jpg" {
		t.Errorf("tie must keep first image, got %s", got[0].BestImagePath())
	}
	if got[0].ProductID() != 1 || got[1].ProductID() != 2 {
		t.Errorf("equal-scored products must keep first-seen order")
	}
}

func TestRank_TopK(t *testing.T) {
	query := []float32{1, 0}
	var cs []product.Candidate
	for i := int64(1); i <= 10; i++ {
		cs = append(cs, cand(prod(i, "M"), i, "x.jpg", vecWithScore(float32(i)/10)))
	}

	got := Rank(query, cs, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	if got[0].ProductID() != 10 || got[2].ProductID() != 8 {
		t.Errorf("unexpected order: %d..%d", got[0].ProductID(), got[2].ProductID())
	}
}

func TestRank_Empty(t *testing.T) {
	got := Rank([]float32{1}, nil, 5)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

// --- Service ---

func TestSearch_AttachesGallery(t *testing.T) {
	a := prod(1, "A")
	src := &mockSource{
		candidates: []product.Candidate{cand(a, 10, "a1.jpg", []float32{1, 0})},
		paths:      map[int64][]string{1: {"a0.jpg", "a1.jpg"}},
	}
	svc := New(src, &mockExtractor{})

	got, err := svc.Search(context.Background(), []float32{1, 0}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || len(got[0].Images()) != 2 {
		t.Fatalf("expected gallery of 2, got %+v", got)
	}
}

func TestSearch_ClampsK(t *testing.T) {
	svc := New(&mockSource{}, &mockExtractor{}, WithLimits(3, 10))
	if k := svc.clampK(0); k != 3 {
		t.Errorf("default k = %d", k)
	}
	if k := svc.clampK(100); k != 10 {
		t.Errorf("max k = %d", k)
	}
	if k := svc.clampK(7); k != 7 {
		t.Errorf("k = %d", k)
	}
}

func TestSearch_SourceError(t *testing.T) {
	svc := New(&mockSource{err: errors.New("db down")}, &mockExtractor{})
	if _, err := svc.Search(context.Background(), []float32{1}, 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecognize(t *testing.T) {
	a := prod(1, "A")
	src := &mockSource{
		candidates: []product.Candidate{cand(a, 10, "a.jpg", []float32{1, 0})},
		paths:      map[int64][]string{1: {"a.jpg"}},
	}
	ext := &mockExtractor{vec: []float32{1, 0}}
	svc := New(src, ext)

	got, err := svc.Recognize(context.Background(), pngBytes(t), "q.png", 5)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(got) != 1 || got[0].ProductID() != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(ext.got) == 0 {
		t.Error("extractor did not receive processed bytes")
	}
}

func TestRecognize_DecodeFailure(t *testing.T) {
	svc := New(&mockSource{}, &mockExtractor{})
	_, err := svc.Recognize(context.Background(), []byte("garbage"), "q.jpg", 5)
	if !errors.Is(err, domain.ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
}

func TestRecognize_ExtractionFailure(t *testing.T) {
	svc := New(&mockSource{}, &mockExtractor{err: errors.New("tensor shape")})
	_, err := svc.Recognize(context.Background(), pngBytes(t), "q.png", 5)
	if !errors.Is(err, domain.ErrExtractionFailure) {
		t.Fatalf("expected ErrExtractionFailure, got %v", err)
	}
}
