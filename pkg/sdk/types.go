package photomatch

import (
	"context"
	"time"
)

// Extractor turns encoded image bytes into a feature vector.
// It must be safe for concurrent use; vectors are L2-normalized by the client.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}

// Image is one stored photo of a product.
type Image struct {
	ID           int64
	Path         string
	DisplayOrder int
}

// Product is a catalog entry with its ordered gallery.
type Product struct {
	ID              int64
	ModelName       string
	ProductName     string
	Price           float64
	MaintenanceTime string
	CreatedAt       time.Time
	Images          []Image
}

// ProductInput carries the fields of a new product.
type ProductInput struct {
	ModelName       string
	ProductName     string
	Price           float64
	MaintenanceTime string
}

// ProductUpdate is a partial product update. Nil fields are unchanged.
type ProductUpdate struct {
	ModelName       *string
	ProductName     *string
	Price           *float64
	MaintenanceTime *string
}

// File is an image to upload.
type File struct {
	Name string
	Data []byte
}

// ProductPage is one page of the product listing.
type ProductPage struct {
	Products []Product
	Total    int
	Limit    int
	Offset   int
}

// Match is one recognition hit: the product, its best matching photo and the cosine score.
type Match struct {
	Product       Product
	BestImageID   int64
	BestImagePath string
	Images        []string
	Score         float64
}

// IngestEntry is the outcome of one archive entry.
type IngestEntry struct {
	Name      string
	Status    string // "added", "skipped", "error"
	ProductID int64
	Reason    string
}

// IngestReport summarizes a bulk archive ingestion.
type IngestReport struct {
	NewProducts     int
	ImagesAdded     int
	UpdatedProducts int
	Skipped         int
	Entries         []IngestEntry
}

// ImageOrder assigns a display order to one image.
type ImageOrder struct {
	ImageID int64
	Order   int
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}
