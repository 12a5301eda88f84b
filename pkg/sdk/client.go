package photomatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/photomatch/internal/db/sqlite"
	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
	"github.com/kailas-cloud/photomatch/internal/domain/search/result"
	catalogrepo "github.com/kailas-cloud/photomatch/internal/repository/catalog"
	"github.com/kailas-cloud/photomatch/internal/storage/local"
	cataloguc "github.com/kailas-cloud/photomatch/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/photomatch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/photomatch/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/photomatch/internal/usecase/search"
)

const (
	defaultDBPath     = "photomatch.db"
	defaultUploadsDir = "."
	defaultBusyWait   = 5 * time.Second
)

// Internal interfaces for substitution in tests.
type catalogUseCase interface {
	Create(ctx context.Context, in cataloguc.Input, files []cataloguc.File) (cataloguc.CreateResult, error)
	UploadImage(ctx context.Context, productID int64, f cataloguc.File) (cataloguc.UploadResult, error)
	Get(ctx context.Context, id int64) (product.Product, error)
	Update(ctx context.Context, id int64, u product.Update) (product.Product, error)
	List(ctx context.Context, limit, offset int, search string) (cataloguc.Page, error)
	Delete(ctx context.Context, id int64) error
	DeleteMany(ctx context.Context, ids []int64) (int, error)
	DeleteImage(ctx context.Context, id int64) error
	ReorderImages(ctx context.Context, updates []product.OrderUpdate) error
}

type recognizeUseCase interface {
	Recognize(ctx context.Context, image []byte, filename string, k int) ([]result.Match, error)
}

type ingestUseCase interface {
	Ingest(ctx context.Context, archive []byte) (ingestuc.Report, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the photomatch SDK entry point.
type Client struct {
	conn       *sql.DB
	catalogSvc catalogUseCase
	searchSvc  recognizeUseCase
	ingestSvc  ingestUseCase
	healthSvc  healthUseCase
	obs        *observer
}

// New opens the catalog database (applying migrations) and wires the services.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dbPath:     defaultDBPath,
		uploadsDir: defaultUploadsDir,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.extractor == nil {
		return nil, errors.New("photomatch: extractor required (use WithExtractor)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	conn, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.dbPath, BusyTimeout: defaultBusyWait})
	if err != nil {
		return nil, fmt.Errorf("photomatch: open catalog: %w", err)
	}

	return wireClient(conn, cfg, obs), nil
}

func wireClient(conn *sql.DB, cfg *clientConfig, obs *observer) *Client {
	repo := catalogrepo.New(conn)
	files := local.New(cfg.uploadsDir)
	extractor := domain.NewNormalizingExtractor(cfg.extractor, cfg.dimensions)

	var searchOpts []searchuc.Option
	if cfg.defaultK > 0 {
		searchOpts = append(searchOpts, searchuc.WithLimits(cfg.defaultK, max(cfg.defaultK, searchuc.MaxK)))
	}

	return &Client{
		conn:       conn,
		catalogSvc: cataloguc.New(repo, files, extractor),
		searchSvc:  searchuc.New(repo, extractor, searchOpts...),
		ingestSvc:  ingestuc.New(repo, files, extractor),
		healthSvc:  healthuc.New(repo, nil, extractor),
		obs:        obs,
	}
}

// Close releases the database handle.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("photomatch: close: %w", err)
	}
	return nil
}

// Recognize ranks catalog products against a query photo.
// k <= 0 uses the default; k is capped at the configured maximum.
func (c *Client) Recognize(ctx context.Context, image []byte, k int) (matches []Match, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opRecognize, start, err, "matches", len(matches)) }()

	res, err := c.searchSvc.Recognize(ctx, image, "", k)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	return fromInternalMatches(res), nil
}

// Ingest loads a zip archive of product photos. Each folder is named
// MODEL[_NAME][_PRICE] and groups the photos of one product; a photo at the
// archive root uses its file stem as the model, with no name or price.
func (c *Client) Ingest(ctx context.Context, archive []byte) (report IngestReport, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe(opIngest, start, err, "images_added", report.ImagesAdded, "skipped", report.Skipped)
	}()

	rep, err := c.ingestSvc.Ingest(ctx, archive)
	if err != nil {
		return IngestReport{}, fmt.Errorf("ingest: %w", err)
	}
	return fromInternalReport(rep), nil
}

// Products returns the product management service.
func (c *Client) Products() *ProductService {
	return &ProductService{svc: c.catalogSvc, obs: c.obs}
}

// Health checks the catalog database and the extractor.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)

	var err error
	if report.Status != healthuc.Healthy {
		err = fmt.Errorf("health: %s", report.Status)
	}
	c.obs.observe(opHealth, start, err)

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
