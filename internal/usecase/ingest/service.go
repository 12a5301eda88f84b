package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/domain"
	dombatch "github.com/kailas-cloud/photomatch/internal/domain/batch"
	domingest "github.com/kailas-cloud/photomatch/internal/domain/ingest"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
	"github.com/kailas-cloud/photomatch/internal/imageproc"
	"github.com/kailas-cloud/photomatch/internal/metrics"
)

// Defaults for archive handling.
const (
	DefaultMaxArchiveBytes = 512 << 20
	DefaultMaxEntryBytes   = 64 << 20
	DefaultUploadPrefix    = "uploads"
)

// maintenanceLayout is the default maintenance time of ingested products (local date).
const maintenanceLayout = "2006-01-02"

// Report is the outcome of one ingestion run.
type Report struct {
	NewProducts     int
	ImagesAdded     int
	UpdatedProducts int
	Skipped         int
	Entries         []dombatch.Result
}

// Service runs the bulk ingestion pipeline over zip archives.
type Service struct {
	products  ProductStore
	files     FileSaver
	extractor Extractor
	events    domain.EventPublisher
	logger    *zap.Logger
	image     imageproc.Options
	prefix    string
	maxBytes  int64
	maxEntry  int64
	now       func() time.Time
}

// New creates an ingestion service.
func New(products ProductStore, files FileSaver, extractor Extractor) *Service {
	return &Service{
		products:  products,
		files:     files,
		extractor: extractor,
		events:    domain.NopPublisher{},
		logger:    zap.NewNop(),
		image:     imageproc.DefaultOptions(),
		prefix:    DefaultUploadPrefix,
		maxBytes:  DefaultMaxArchiveBytes,
		maxEntry:  DefaultMaxEntryBytes,
		now:       time.Now,
	}
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

// WithUploadPrefix sets the storage prefix under which batch directories are created.
func (s *Service) WithUploadPrefix(prefix string) *Service {
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		s.prefix = prefix
	}
	return s
}

// WithMaxArchiveBytes caps the accepted archive size.
func (s *Service) WithMaxArchiveBytes(n int64) *Service {
	if n > 0 {
		s.maxBytes = n
	}
	return s
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// run is the per-call state. Resolution is keyed by model name.
type run struct {
	dir      string
	resolved map[string]int64
	names    map[string]struct{}
	report   Report
}

// Ingest processes every image entry of a zip archive in archive order.
// Only an unreadable archive fails the call; bad entries are reported and skipped.
func (s *Service) Ingest(ctx context.Context, archive []byte) (Report, error) {
	if int64(len(archive)) > s.maxBytes {
		return Report{}, fmt.Errorf("archive exceeds %d bytes: %w", s.maxBytes, domain.ErrInvalidInput)
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", domain.ErrInvalidArchive, err)
	}

	now := s.now()
	r := &run{
		dir:      fmt.Sprintf("%s/batch_%d_%s", s.prefix, now.Unix(), shortID()),
		resolved: make(map[string]int64),
		names:    make(map[string]struct{}),
		report:   Report{Entries: make([]dombatch.Result, 0, len(zr.File))},
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return r.report, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		name := RecoverName(f.Name)
		if domingest.IsMetadata(name) {
			continue
		}
		s.ingestEntry(ctx, r, f, name, now)
	}

	s.logger.Info("archive ingested",
		zap.String("dir", r.dir),
		zap.Int("new_products", r.report.NewProducts),
		zap.Int("updated_products", r.report.UpdatedProducts),
		zap.Int("images_added", r.report.ImagesAdded),
		zap.Int("skipped", r.report.Skipped),
	)
	return r.report, nil
}

func (s *Service) ingestEntry(ctx context.Context, r *run, f *zip.File, name string, now time.Time) {
	if !domingest.IsImage(name) {
		s.skip(r, dombatch.NewSkipped(name, "not an image"))
		return
	}

	entry := domingest.ParseEntryPath(name)
	key := entry.Key()
	if key.Model() == "" {
		s.skip(r, dombatch.NewSkipped(name, "empty model name"))
		return
	}

	data, err := s.readEntry(f)
	if err != nil {
		s.fail(r, dombatch.NewError(name, 0, err))
		return
	}

	// Undecodable entries never create a product.
	img, err := imageproc.Process(data, entry.Leaf(), s.image)
	if err != nil {
		s.logger.Debug("skip undecodable entry", zap.String("entry", name), zap.Error(err))
		s.fail(r, dombatch.NewError(name, 0, err))
		return
	}

	productID, err := s.resolve(ctx, r, key, now)
	if err != nil {
		s.logger.Error("resolve product", zap.String("entry", name), zap.Error(err))
		s.fail(r, dombatch.NewError(name, 0, err))
		return
	}

	path := r.dir + "/" + s.saveName(r, key.Model(), imageproc.ReplaceExt(entry.Leaf(), img.Ext))
	if err := s.files.Save(ctx, path, img.Data); err != nil {
		s.logger.Error("save image", zap.String("path", path), zap.Error(err))
		s.fail(r, dombatch.NewError(name, productID, fmt.Errorf("save image: %w", err)))
		return
	}

	// The saved file stays as an orphan when extraction fails.
	vec, err := s.extractor.Extract(ctx, img.Data)
	if err != nil {
		err = domain.ExtractionError(err)
		s.logger.Warn("extraction failed", zap.String("entry", name), zap.Error(err))
		s.fail(r, dombatch.NewError(name, productID, err))
		return
	}

	imageID, err := s.products.AddImage(ctx, productID, path, vec, product.OrderUnspecified)
	if err != nil {
		s.logger.Error("add image", zap.String("entry", name), zap.Error(err))
		s.fail(r, dombatch.NewError(name, productID, fmt.Errorf("add image: %w", err)))
		return
	}

	r.report.ImagesAdded++
	r.report.Entries = append(r.report.Entries, dombatch.NewAdded(name, productID, ambiguity(key)))
	metrics.IngestEntriesTotal.WithLabelValues("added").Inc()
	s.publish(ctx, domain.CatalogEvent{
		Type: domain.EventImageAdded, ProductID: productID, ImageID: imageID,
		ModelName: key.Model(), ImagePath: path, At: s.now(),
	})
}

// resolve returns the product id for key, creating or merging it on first sight in this run.
func (s *Service) resolve(ctx context.Context, r *run, key domingest.Key, now time.Time) (int64, error) {
	if id, ok := r.resolved[key.Model()]; ok {
		return id, nil
	}

	existing, err := s.products.FindProductByModel(ctx, key.Model())
	switch {
	case err == nil:
		id := existing.ID()
		merged, changed := existing.Merge(key.ProductName(), key.Price())
		if changed {
			if err := s.products.UpdateProduct(ctx, merged); err != nil {
				return 0, fmt.Errorf("update product %d: %w", id, err)
			}
			r.report.UpdatedProducts++
			metrics.IngestProductsTotal.WithLabelValues("updated").Inc()
			s.publish(ctx, domain.CatalogEvent{
				Type: domain.EventProductUpdated, ProductID: id, ModelName: key.Model(), At: s.now(),
			})
		} else {
			metrics.IngestProductsTotal.WithLabelValues("reused").Inc()
		}
		r.resolved[key.Model()] = id
		return id, nil

	case errors.Is(err, domain.ErrNotFound):
		p, err := product.New(key.Model(), key.ProductName(), key.Price(), now.Format(maintenanceLayout))
		if err != nil {
			return 0, err
		}
		id, err := s.products.CreateProduct(ctx, p)
		if err != nil {
			return 0, fmt.Errorf("create product %q: %w", key.Model(), err)
		}
		r.report.NewProducts++
		metrics.IngestProductsTotal.WithLabelValues("created").Inc()
		s.publish(ctx, domain.CatalogEvent{
			Type: domain.EventProductCreated, ProductID: id, ModelName: key.Model(), At: s.now(),
		})
		r.resolved[key.Model()] = id
		return id, nil

	default:
		return 0, fmt.Errorf("find product %q: %w", key.Model(), err)
	}
}

func (s *Service) readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(s.maxEntry) {
		return nil, fmt.Errorf("entry exceeds %d bytes: %w", s.maxEntry, domain.ErrInvalidInput)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", domain.ErrDecodeFailure)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxEntry+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read entry: %v", domain.ErrDecodeFailure, err)
	}
	if int64(len(data)) > s.maxEntry {
		return nil, fmt.Errorf("entry exceeds %d bytes: %w", s.maxEntry, domain.ErrInvalidInput)
	}
	return data, nil
}

// saveName sanitizes the name and prefixes a short uuid when it repeats within the run.
func (s *Service) saveName(r *run, model, leaf string) string {
	name := domingest.SaveName(model, leaf)
	if _, dup := r.names[name]; dup {
		name = shortID() + "_" + name
	}
	r.names[name] = struct{}{}
	return name
}

func (s *Service) skip(r *run, res dombatch.Result) {
	r.report.Skipped++
	r.report.Entries = append(r.report.Entries, res)
	metrics.IngestEntriesTotal.WithLabelValues("skipped").Inc()
	s.logger.Debug("skip entry", zap.String("entry", res.Name()), zap.String("reason", res.Reason()))
}

func (s *Service) fail(r *run, res dombatch.Result) {
	r.report.Skipped++
	r.report.Entries = append(r.report.Entries, res)
	metrics.IngestEntriesTotal.WithLabelValues("failed").Inc()
}

func (s *Service) publish(ctx context.Context, ev domain.CatalogEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish catalog event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

func ambiguity(key domingest.Key) string {
	if !key.Ambiguous() {
		return ""
	}
	return fmt.Sprintf("ambiguous: numeric segment taken as price %g", key.Price())
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
