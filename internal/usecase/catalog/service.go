package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/domain"
	domingest "github.com/kailas-cloud/photomatch/internal/domain/ingest"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
	"github.com/kailas-cloud/photomatch/internal/imageproc"
	"github.com/kailas-cloud/photomatch/internal/metrics"
)

// Result statuses.
const (
	StatusCreated  = "created"
	StatusUploaded = "uploaded"
)

// File is an uploaded image.
type File struct {
	Name string
	Data []byte
}

// Input carries the fields of a new product.
type Input struct {
	ModelName       string
	ProductName     string
	Price           float64
	MaintenanceTime string
}

// CreateResult is returned by Create.
type CreateResult struct {
	ID          int64
	Status      string
	ImagesCount int
}

// UploadResult is returned by UploadImage.
type UploadResult struct {
	ID        int64
	ImagePath string
	Status    string
}

// Page is one page of the product listing.
type Page struct {
	Items  []product.Product
	Total  int
	Limit  int
	Offset int
}

// ReextractResult counts re-extracted images.
type ReextractResult struct {
	Updated int
	Failed  int
}

// Service owns product CRUD and the single-upload and deletion boundary
// between the catalog store and the file store.
type Service struct {
	repo            Repository
	files           FileStore
	extractor       Extractor
	events          domain.EventPublisher
	logger          *zap.Logger
	image           imageproc.Options
	prefix          string
	defaultPageSize int
	maxPageSize     int
}

// New creates a catalog service.
func New(repo Repository, files FileStore, extractor Extractor) *Service {
	return &Service{
		repo:            repo,
		files:           files,
		extractor:       extractor,
		events:          domain.NopPublisher{},
		logger:          zap.NewNop(),
		image:           imageproc.DefaultOptions(),
		prefix:          "uploads",
		defaultPageSize: 20,
		maxPageSize:     100,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// WithLogger sets the service logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithEvents sets the catalog event publisher.
func (s *Service) WithEvents(p domain.EventPublisher) *Service {
	if p != nil {
		s.events = p
	}
	return s
}

// WithImageOptions sets resize and encoding of stored photos.
func (s *Service) WithImageOptions(o imageproc.Options) *Service {
	s.image = o
	return s
}

// WithUploadPrefix sets the storage prefix of uploaded images.
func (s *Service) WithUploadPrefix(prefix string) *Service {
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		s.prefix = prefix
	}
	return s
}

// Create validates and stores a product, then uploads each file to it.
// Files that fail to decode or extract are logged and not counted.
func (s *Service) Create(ctx context.Context, in Input, files []File) (CreateResult, error) {
	p, err := product.New(in.ModelName, in.ProductName, in.Price, in.MaintenanceTime)
	if err != nil {
		return CreateResult{}, err
	}

	id, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create product: %w", err)
	}
	s.publish(ctx, domain.CatalogEvent{Type: domain.EventProductCreated, ProductID: id, ModelName: p.ModelName()})

	count := 0
	for _, f := range files {
		if _, err := s.addImage(ctx, id, p.ModelName(), f); err != nil {
			s.logger.Warn("skip product image", zap.Int64("product_id", id), zap.String("file", f.Name), zap.Error(err))
			continue
		}
		count++
	}

	s.refreshGauge(ctx)
	return CreateResult{ID: id, Status: StatusCreated, ImagesCount: count}, nil
}

// UploadImage appends one image to an existing product.
func (s *Service) UploadImage(ctx context.Context, productID int64, f File) (UploadResult, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return UploadResult{}, fmt.Errorf("get product: %w", err)
	}

	img, err := s.addImage(ctx, productID, p.ModelName(), f)
	if err != nil {
		return UploadResult{}, err
	}
	return UploadResult{ID: img.ID(), ImagePath: img.Path(), Status: StatusUploaded}, nil
}

// addImage processes, stores and extracts one file. The stored file is removed
// when extraction or linking fails.
func (s *Service) addImage(ctx context.Context, productID int64, model string, f File) (product.Image, error) {
	processed, err := imageproc.Process(f.Data, f.Name, s.image)
	if err != nil {
		return product.Image{}, err
	}

	name := domingest.Sanitize(imageproc.ReplaceExt(baseName(f.Name), processed.Ext))
	key := fmt.Sprintf("%s/%d_%s_%s", s.prefix, productID, strings.ReplaceAll(uuid.NewString(), "-", ""), name)
	if err := s.files.Save(ctx, key, processed.Data); err != nil {
		return product.Image{}, fmt.Errorf("save image: %w", err)
	}

	vec, err := s.extractor.Extract(ctx, processed.Data)
	if err != nil {
		s.removeFiles(ctx, key)
		return product.Image{}, fmt.Errorf("extract: %w", domain.ExtractionError(err))
	}

	imageID, err := s.repo.AddImage(ctx, productID, key, vec, product.OrderUnspecified)
	if err != nil {
		s.removeFiles(ctx, key)
		return product.Image{}, fmt.Errorf("add image: %w", err)
	}

	s.publish(ctx, domain.CatalogEvent{
		Type: domain.EventImageAdded, ProductID: productID, ImageID: imageID, ModelName: model, ImagePath: key,
	})
	return product.ReconstructImage(imageID, productID, key, vec, product.OrderUnspecified), nil
}

// Get returns a product with its ordered images.
func (s *Service) Get(ctx context.Context, id int64) (product.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return product.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Update applies an explicit edit to a product.
func (s *Service) Update(ctx context.Context, id int64, u product.Update) (product.Product, error) {
	current, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return product.Product{}, fmt.Errorf("get product: %w", err)
	}
	if u.IsEmpty() {
		return current, nil
	}

	next, err := current.Apply(u)
	if err != nil {
		return product.Product{}, err
	}
	if err := s.repo.UpdateProduct(ctx, next); err != nil {
		return product.Product{}, fmt.Errorf("update product: %w", err)
	}

	s.publish(ctx, domain.CatalogEvent{Type: domain.EventProductUpdated, ProductID: id, ModelName: next.ModelName()})
	return next, nil
}

// List returns a page of products, newest first.
func (s *Service) List(ctx context.Context, limit, offset int, search string) (Page, error) {
	if offset < 0 {
		return Page{}, fmt.Errorf("offset must be non-negative: %w", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	search = strings.TrimSpace(search)

	items, err := s.repo.ListProducts(ctx, limit, offset, search)
	if err != nil {
		return Page{}, fmt.Errorf("list products: %w", err)
	}
	total, err := s.repo.CountProducts(ctx, search)
	if err != nil {
		return Page{}, fmt.Errorf("count products: %w", err)
	}
	if search == "" {
		metrics.CatalogProducts.Set(float64(total))
	}

	return Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Delete removes a product, its image rows and then its files.
func (s *Service) Delete(ctx context.Context, id int64) error {
	paths, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.removeFiles(ctx, paths...)
	s.publish(ctx, domain.CatalogEvent{Type: domain.EventProductDeleted, ProductID: id})
	s.refreshGauge(ctx)
	return nil
}

// DeleteMany removes several products in one transaction and returns the requested count.
func (s *Service) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	paths, err := s.repo.DeleteProducts(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete products: %w", err)
	}

	s.removeFiles(ctx, paths...)
	events := make([]domain.CatalogEvent, len(ids))
	for i, id := range ids {
		events[i] = domain.CatalogEvent{Type: domain.EventProductDeleted, ProductID: id}
	}
	s.publish(ctx, events...)
	s.refreshGauge(ctx)
	return len(ids), nil
}

// DeleteImage removes one image row and then its file.
func (s *Service) DeleteImage(ctx context.Context, id int64) error {
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return fmt.Errorf("get image: %w", err)
	}
	path, err := s.repo.DeleteImage(ctx, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}

	s.removeFiles(ctx, path)
	s.publish(ctx, domain.CatalogEvent{
		Type: domain.EventImageDeleted, ProductID: img.ProductID(), ImageID: id, ImagePath: path,
	})
	return nil
}

// ReorderImages sets display orders; all updates apply or none do.
func (s *Service) ReorderImages(ctx context.Context, updates []product.OrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if err := s.repo.ReorderImages(ctx, updates); err != nil {
		return fmt.Errorf("reorder images: %w", err)
	}
	return nil
}

// Reextract recomputes the vector of every stored image from its file.
// Needed after a model change: vectors of different models are not comparable.
func (s *Service) Reextract(ctx context.Context) (ReextractResult, error) {
	images, err := s.repo.ListImages(ctx)
	if err != nil {
		return ReextractResult{}, fmt.Errorf("list images: %w", err)
	}

	var res ReextractResult
	for i := range images {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		img := &images[i]
		if err := s.reextractOne(ctx, img); err != nil {
			res.Failed++
			s.logger.Warn("reextract image",
				zap.Int64("image_id", img.ID()), zap.String("path", img.Path()), zap.Error(err))
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			continue
		}
		res.Updated++
	}

	s.logger.Info("reextract finished", zap.Int("updated", res.Updated), zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Service) reextractOne(ctx context.Context, img *product.Image) error {
	data, err := s.files.Read(ctx, img.Path())
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	vec, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return domain.ExtractionError(err)
	}
	return s.repo.SetImageVector(ctx, img.ID(), vec)
}

// removeFiles deletes files after their rows are gone. Failures are logged and counted, never returned.
func (s *Service) removeFiles(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if err := s.files.Remove(ctx, p); err != nil {
			metrics.CatalogFileCleanupErrorsTotal.Inc()
			s.logger.Warn("remove image file", zap.String("path", p), zap.Error(err))
		}
	}
}

func (s *Service) refreshGauge(ctx context.Context) {
	total, err := s.repo.CountProducts(ctx, "")
	if err != nil {
		s.logger.Debug("count products", zap.Error(err))
		return
	}
	metrics.CatalogProducts.Set(float64(total))
}

func (s *Service) publish(ctx context.Context, events ...domain.CatalogEvent) {
	now := time.Now().UTC()
	for i := range events {
		if events[i].At.IsZero() {
			events[i].At = now
		}
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("publish catalog events", zap.Int("count", len(events)), zap.Error(err))
	}
}

// baseName strips any client-side directory from an upload name.
func baseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "image.jpg"
	}
	return name
}
