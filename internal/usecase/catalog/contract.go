package catalog

import (
	"context"

	"github.com/kailas-cloud/photomatch/internal/domain/product"
)

// Repository is the catalog store used by the service.
type Repository interface {
	CreateProduct(ctx context.Context, p product.Product) (int64, error)
	GetProduct(ctx context.Context, id int64) (product.Product, error)
	UpdateProduct(ctx context.Context, p product.Product) error
	ListProducts(ctx context.Context, limit, offset int, search string) ([]product.Product, error)
	CountProducts(ctx context.Context, search string) (int, error)
	// DeleteProduct and DeleteProducts report the image paths of the rows they
	// removed, collected in the same transaction as the delete.
	DeleteProduct(ctx context.Context, id int64) ([]string, error)
	DeleteProducts(ctx context.Context, ids []int64) ([]string, error)

	AddImage(ctx context.Context, productID int64, path string, vector []float32, order int) (int64, error)
	GetImage(ctx context.Context, id int64) (product.Image, error)
	DeleteImage(ctx context.Context, id int64) (string, error)
	ReorderImages(ctx context.Context, updates []product.OrderUpdate) error
	ListImages(ctx context.Context) ([]product.Image, error)
	SetImageVector(ctx context.Context, imageID int64, vector []float32) error
}

// FileStore holds image bytes.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// Extractor turns image bytes into a normalized vector.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}
