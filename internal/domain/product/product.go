// Package product holds the catalog aggregate: a product and its ordered images.
package product

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kailas-cloud/photomatch/internal/domain"
)

// MaxModelNameLength bounds the model name stored per product.
const MaxModelNameLength = 256

// Product is the catalog aggregate (immutable value object).
type Product struct {
	id              int64
	modelName       string
	productName     string
	price           float64
	maintenanceTime string
	createdAt       time.Time
	images          []Image
}

// New validates and creates an unsaved Product.
// Model name is required after trimming; price must be finite and non-negative.
func New(modelName, productName string, price float64, maintenanceTime string) (Product, error) {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		return Product{}, fmt.Errorf("model name is required: %w", domain.ErrInvalidInput)
	}
	if len(modelName) > MaxModelNameLength {
		return Product{}, fmt.Errorf("model name too long (max %d): %w", MaxModelNameLength, domain.ErrInvalidInput)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return Product{}, fmt.Errorf("price must be a non-negative number: %w", domain.ErrInvalidInput)
	}
	return Product{
		modelName:       modelName,
		productName:     strings.TrimSpace(productName),
		price:           price,
		maintenanceTime: strings.TrimSpace(maintenanceTime),
	}, nil
}

// Reconstruct creates a Product without validation (storage hydration).
func Reconstruct(
	id int64, modelName, productName string, price float64,
	maintenanceTime string, createdAt time.Time, images []Image,
) Product {
	return Product{
		id: id, modelName: modelName, productName: productName, price: price,
		maintenanceTime: maintenanceTime, createdAt: createdAt, images: images,
	}
}

// ID returns the product identifier (0 for unsaved products).
func (p *Product) ID() int64 { return p.id }

// ModelName returns the external model key.
func (p *Product) ModelName() string { return p.modelName }

// ProductName returns the display name.
func (p *Product) ProductName() string { return p.productName }

// Price returns the price; 0 means unknown.
func (p *Product) Price() float64 { return p.price }

// MaintenanceTime returns the opaque maintenance description.
func (p *Product) MaintenanceTime() string { return p.maintenanceTime }

// CreatedAt returns the creation timestamp.
func (p *Product) CreatedAt() time.Time { return p.createdAt }

// Images returns the images ordered by display order, then id.
func (p *Product) Images() []Image { return p.images }

// ImagePaths returns the ordered image paths.
func (p *Product) ImagePaths() []string {
	paths := make([]string, len(p.images))
	for i := range p.images {
		paths[i] = p.images[i].Path()
	}
	return paths
}

// WithImages returns a copy carrying the given images.
func (p Product) WithImages(images []Image) Product {
	p.images = images
	return p
}

// Merge applies ingestion values on top of the stored product: a non-empty name
// and a positive price replace stored values, blanks never overwrite.
// Reports whether anything changed.
func (p Product) Merge(productName string, price float64) (Product, bool) {
	changed := false
	if productName != "" && productName != p.productName {
		p.productName = productName
		changed = true
	}
	if price > 0 && price != p.price {
		p.price = price
		changed = true
	}
	return p, changed
}

// Update carries the fields of an explicit product edit. Nil fields are left unchanged.
type Update struct {
	ModelName       *string
	ProductName     *string
	Price           *float64
	MaintenanceTime *string
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.ModelName == nil && u.ProductName == nil && u.Price == nil && u.MaintenanceTime == nil
}

// Apply returns a copy with the update applied, validated like New.
// Unlike Merge, an explicit empty name or zero price does overwrite.
func (p Product) Apply(u Update) (Product, error) {
	model, name, price, maint := p.modelName, p.productName, p.price, p.maintenanceTime
	if u.ModelName != nil {
		model = *u.ModelName
	}
	if u.ProductName != nil {
		name = *u.ProductName
	}
	if u.Price != nil {
		price = *u.Price
	}
	if u.MaintenanceTime != nil {
		maint = *u.MaintenanceTime
	}

	next, err := New(model, name, price, maint)
	if err != nil {
		return Product{}, err
	}
	next.id, next.createdAt, next.images = p.id, p.createdAt, p.images
	return next, nil
}
