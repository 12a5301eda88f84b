package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/domain/search/result"
	"github.com/kailas-cloud/photomatch/internal/imageproc"
)

// Defaults for top-K.
const (
	DefaultK = 5
	MaxK     = 50
)

// Service ranks catalog products against a query image.
type Service struct {
	source    VectorSource
	extractor Extractor
	image     imageproc.Options
	defaultK  int
	maxK      int
}

// Option configures Service.
type Option func(*Service)

// WithLimits sets the default and maximum k.
func WithLimits(defaultK, maxK int) Option {
	return func(s *Service) {
		if defaultK > 0 {
			s.defaultK = defaultK
		}
		if maxK > 0 {
			s.maxK = maxK
		}
	}
}

// WithImageOptions sets the preprocessing applied to query images.
// It must match what uploads use so query and stored vectors are comparable.
func WithImageOptions(o imageproc.Options) Option {
	return func(s *Service) { s.image = o }
}

// New creates a search service.
func New(source VectorSource, extractor Extractor, opts ...Option) *Service {
	s := &Service{
		source:    source,
		extractor: extractor,
		image:     imageproc.DefaultOptions(),
		defaultK:  DefaultK,
		maxK:      MaxK,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Recognize processes the query image like an upload (in memory), extracts its
// vector and returns the top k products. filename selects the re-encoding format.
func (s *Service) Recognize(ctx context.Context, image []byte, filename string, k int) ([]result.Match, error) {
	if filename == "" {
		filename = "query.jpg"
	}
	processed, err := imageproc.Process(image, filename, s.image)
	if err != nil {
		return nil, fmt.Errorf("process query image: %w", err)
	}

	vec, err := s.extractor.Extract(ctx, processed.Data)
	if err != nil {
		return nil, fmt.Errorf("extract query: %w", domain.ExtractionError(err))
	}

	return s.Search(ctx, vec, k)
}

// Search ranks stored vectors against query and attaches each product's gallery.
func (s *Service) Search(ctx context.Context, query []float32, k int) ([]result.Match, error) {
	k = s.clampK(k)

	candidates, err := s.source.AllVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	matches := Rank(query, candidates, k)
	for i := range matches {
		paths, err := s.source.ImagePaths(ctx, matches[i].ProductID())
		if err != nil {
			return nil, fmt.Errorf("image paths for product %d: %w", matches[i].ProductID(), err)
		}
		matches[i] = matches[i].WithImages(paths)
	}
	return matches, nil
}

func (s *Service) clampK(k int) int {
	if k <= 0 {
		return s.defaultK
	}
	if k > s.maxK {
		return s.maxK
	}
	return k
}
