package photomatch

import (
	"context"
	"fmt"
	"time"

	cataloguc "github.com/kailas-cloud/photomatch/internal/usecase/catalog"
)

// ProductService manages catalog products and their photos.
type ProductService struct {
	svc catalogUseCase
	obs *observer
}

// Create stores a product and uploads files to it. Files that cannot be decoded
// or extracted are skipped; the returned count covers stored images only.
func (s *ProductService) Create(
	ctx context.Context, in ProductInput, files ...File,
) (id int64, images int, err error) {
	start := time.Now()
	defer func() { s.obs.observe(opProductCreate, start, err, "product_id", id) }()

	res, err := s.svc.Create(ctx, cataloguc.Input{
		ModelName:       in.ModelName,
		ProductName:     in.ProductName,
		Price:           in.Price,
		MaintenanceTime: in.MaintenanceTime,
	}, toInternalFiles(files))
	if err != nil {
		return 0, 0, fmt.Errorf("create product: %w", err)
	}
	return res.ID, res.ImagesCount, nil
}

// Get retrieves a product by ID.
func (s *ProductService) Get(ctx context.Context, id int64) (p Product, err error) {
	start := time.Now()
	defer func() { s.obs.observe(opProductGet, start, err) }()

	res, err := s.svc.Get(ctx, id)
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return fromInternalProduct(&res), nil
}

// List returns one page of products, newest first. search matches model or product name.
func (s *ProductService) List(ctx context.Context, limit, offset int, search string) (page ProductPage, err error) {
	start := time.Now()
	defer func() { s.obs.observe(opProductList, start, err) }()

	res, err := s.svc.List(ctx, limit, offset, search)
	if err != nil {
		return ProductPage{}, fmt.Errorf("list products: %w", err)
	}
	return fromInternalPage(res), nil
}

// Update applies a partial update and returns the stored product.
func (s *ProductService) Update(ctx context.Context, id int64, u ProductUpdate) (p Product, err error) {
	start := time.Now()
	defer func() { s.obs.observe(opProductUpdate, start, err) }()

	res, err := s.svc.Update(ctx, id, toInternalUpdate(u))
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return fromInternalProduct(&res), nil
}

// Delete removes a product, its images and their files.
func (s *ProductService) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { s.obs.observe(opProductDelete, start, err) }()

	if err = s.svc.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// DeleteMany removes several products. Unknown IDs are ignored.
func (s *ProductService) DeleteMany(ctx context.Context, ids ...int64) (n int, err error) {
	start := time.Now()
	defer func() { s.obs.observe(opProductDeleteMany, start, err, "count", n) }()

	n, err = s.svc.DeleteMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete products: %w", err)
	}
	return n, nil
}

// UploadImage appends a photo to an existing product and returns the new image.
func (s *ProductService) UploadImage(ctx context.Context, productID int64, f File) (img Image, err error) {
	start := time.Now()
	defer func() { s.obs.observe(opImageUpload, start, err, "product_id", productID) }()

	res, err := s.svc.UploadImage(ctx, productID, cataloguc.File(f))
	if err != nil {
		return Image{}, fmt.Errorf("upload image: %w", err)
	}
	return Image{ID: res.ID, Path: res.ImagePath}, nil
}

// DeleteImage removes one photo and its file.
func (s *ProductService) DeleteImage(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { s.obs.observe(opImageDelete, start, err) }()

	if err = s.svc.DeleteImage(ctx, id); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// ReorderImages sets display orders; the lowest order becomes the cover photo.
func (s *ProductService) ReorderImages(ctx context.Context, orders ...ImageOrder) (err error) {
	start := time.Now()
	defer func() { s.obs.observe(opImageReorder, start, err) }()

	if err = s.svc.ReorderImages(ctx, toInternalOrders(orders)); err != nil {
		return fmt.Errorf("reorder images: %w", err)
	}
	return nil
}
