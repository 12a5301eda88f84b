package photomatch

import (
	"context"

	"github.com/kailas-cloud/photomatch/internal/domain/product"
	"github.com/kailas-cloud/photomatch/internal/domain/search/result"
	cataloguc "github.com/kailas-cloud/photomatch/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/photomatch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/photomatch/internal/usecase/ingest"
)

// --- catalogUseCase mock ---

type mockCatalogUC struct {
	createFn      func(ctx context.Context, in cataloguc.Input, files []cataloguc.File) (cataloguc.CreateResult, error)
	uploadFn      func(ctx context.Context, productID int64, f cataloguc.File) (cataloguc.UploadResult, error)
	getFn         func(ctx context.Context, id int64) (product.Product, error)
	updateFn      func(ctx context.Context, id int64, u product.Update) (product.Product, error)
	listFn        func(ctx context.Context, limit, offset int, search string) (cataloguc.Page, error)
	deleteFn      func(ctx context.Context, id int64) error
	deleteManyFn  func(ctx context.Context, ids []int64) (int, error)
	deleteImageFn func(ctx context.Context, id int64) error
	reorderFn     func(ctx context.Context, updates []product.OrderUpdate) error
}

func (m *mockCatalogUC) Create(
	ctx context.Context, in cataloguc.Input, files []cataloguc.File,
) (cataloguc.CreateResult, error) {
	return m.createFn(ctx, in, files)
}

func (m *mockCatalogUC) UploadImage(
	ctx context.Context, productID int64, f cataloguc.File,
) (cataloguc.UploadResult, error) {
	return m.uploadFn(ctx, productID, f)
}

func (m *mockCatalogUC) Get(ctx context.Context, id int64) (product.Product, error) {
	return m.getFn(ctx, id)
}

func (m *mockCatalogUC) Update(ctx context.Context, id int64, u product.Update) (product.Product, error) {
	return m.updateFn(ctx, id, u)
}

func (m *mockCatalogUC) List(ctx context.Context, limit, offset int, search string) (cataloguc.Page, error) {
	return m.listFn(ctx, limit, offset, search)
}

func (m *mockCatalogUC) Delete(ctx context.Context, id int64) error {
	return m.deleteFn(ctx, id)
}

func (m *mockCatalogUC) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	return m.deleteManyFn(ctx, ids)
}

func (m *mockCatalogUC) DeleteImage(ctx context.Context, id int64) error {
	return m.deleteImageFn(ctx, id)
}

func (m *mockCatalogUC) ReorderImages(ctx context.Context, updates []product.OrderUpdate) error {
	return m.reorderFn(ctx, updates)
}

// --- recognizeUseCase mock ---

type mockRecognizeUC struct {
	fn func(ctx context.Context, image []byte, filename string, k int) ([]result.Match, error)
}

func (m *mockRecognizeUC) Recognize(
	ctx context.Context, image []byte, filename string, k int,
) ([]result.Match, error) {
	return m.fn(ctx, image, filename, k)
}

// --- ingestUseCase mock ---

type mockIngestUC struct {
	fn func(ctx context.Context, archive []byte) (ingestuc.Report, error)
}

func (m *mockIngestUC) Ingest(ctx context.Context, archive []byte) (ingestuc.Report, error) {
	return m.fn(ctx, archive)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- Extractor mock ---

type mockExtractor struct {
	fn func(ctx context.Context, image []byte) ([]float32, error)
}

func (m *mockExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	return m.fn(ctx, image)
}
