package ingest

import (
	"context"

	"github.com/kailas-cloud/photomatch/internal/domain/product"
)

// ProductStore resolves and mutates products during a run.
type ProductStore interface {
	FindProductByModel(ctx context.Context, modelName string) (product.Product, error)
	CreateProduct(ctx context.Context, p product.Product) (int64, error)
	UpdateProduct(ctx context.Context, p product.Product) error
	AddImage(ctx context.Context, productID int64, path string, vector []float32, order int) (int64, error)
}

// FileSaver stores processed image bytes.
type FileSaver interface {
	Save(ctx context.Context, key string, data []byte) error
}

// Extractor turns image bytes into a normalized vector.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}
