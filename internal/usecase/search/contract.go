package search

import (
	"context"

	"github.com/kailas-cloud/photomatch/internal/domain/product"
)

// VectorSource is the catalog view the ranker scans.
type VectorSource interface {
	AllVectors(ctx context.Context) ([]product.Candidate, error)
	ImagePaths(ctx context.Context, productID int64) ([]string, error)
}

// Extractor turns a query image into a normalized vector.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}
