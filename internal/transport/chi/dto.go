package chi

import (
	"time"

	dombatch "github.com/kailas-cloud/photomatch/internal/domain/batch"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
	"github.com/kailas-cloud/photomatch/internal/domain/search/result"
	cataloguc "github.com/kailas-cloud/photomatch/internal/usecase/catalog"
	ingestuc "github.com/kailas-cloud/photomatch/internal/usecase/ingest"
)

type errorCode string

const (
	codeBadRequest           errorCode = "bad_request"
	codeUnauthorized         errorCode = "unauthorized"
	codeNotFound             errorCode = "not_found"
	codeValidationFailed     errorCode = "validation_failed"
	codeDecodeFailed         errorCode = "decode_failed"
	codeExtractionFailed     errorCode = "extraction_failed"
	codeInvalidArchive       errorCode = "invalid_archive"
	codeConflict             errorCode = "conflict"
	codeVectorDimMismatch    errorCode = "vector_dim_mismatch"
	codeExtractorUnavailable errorCode = "extractor_unavailable"
	codePayloadTooLarge      errorCode = "payload_too_large"
	codeInternalError        errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
	Count  *int   `json:"count,omitempty"`
}

type imageResponse struct {
	ID           int64  `json:"id"`
	ImagePath    string `json:"image_path"`
	DisplayOrder int    `json:"display_order"`
}

type productResponse struct {
	ID              int64           `json:"id"`
	ModelName       string          `json:"model_name"`
	ProductName     string          `json:"product_name"`
	Price           float64         `json:"price"`
	MaintenanceTime string          `json:"maintenance_time"`
	CreatedAt       string          `json:"created_at"`
	ImagePath       *string         `json:"image_path"`
	Images          []imageResponse `json:"images"`
}

type productListResponse struct {
	Items  []productResponse `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type updateProductRequest struct {
	ModelName       *string  `json:"model_name"`
	ProductName     *string  `json:"product_name"`
	Price           *float64 `json:"price"`
	MaintenanceTime *string  `json:"maintenance_time"`
}

type batchDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

type reorderItem struct {
	ID    int64 `json:"id"`
	Order int   `json:"order"`
}

type reorderRequest struct {
	Items []reorderItem `json:"items"`
}

type createProductResponse struct {
	ID          int64  `json:"id"`
	Status      string `json:"status"`
	ImagesCount int    `json:"images_count"`
}

type uploadImageResponse struct {
	ID        int64  `json:"id"`
	ImagePath string `json:"image_path"`
	Status    string `json:"status"`
}

type recognizedProduct struct {
	ID              int64    `json:"id"`
	ModelName       string   `json:"model_name"`
	ProductName     string   `json:"product_name"`
	Price           float64  `json:"price"`
	MaintenanceTime string   `json:"maintenance_time"`
	ImagePath       string   `json:"image_path"`
	Images          []string `json:"images"`
}

type recognizeItem struct {
	ID      int64             `json:"id"`
	Product recognizedProduct `json:"product"`
	Score   float64           `json:"score"`
}

type ingestEntry struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	ProductID int64  `json:"product_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type ingestResponse struct {
	Status          string        `json:"status"`
	NewProducts     int           `json:"new_products_count"`
	ImagesAdded     int           `json:"images_added_count"`
	UpdatedProducts int           `json:"updated_products_count"`
	Skipped         int           `json:"skipped_count"`
	Entries         []ingestEntry `json:"entries"`
}

type reextractResponse struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func productToResponse(p *product.Product) productResponse {
	images := make([]imageResponse, len(p.Images()))
	for i, img := range p.Images() {
		images[i] = imageResponse{ID: img.ID(), ImagePath: img.Path(), DisplayOrder: img.DisplayOrder()}
	}

	var cover *string
	if len(images) > 0 {
		cover = &images[0].ImagePath
	}

	return productResponse{
		ID:              p.ID(),
		ModelName:       p.ModelName(),
		ProductName:     p.ProductName(),
		Price:           p.Price(),
		MaintenanceTime: p.MaintenanceTime(),
		CreatedAt:       p.CreatedAt().UTC().Format(time.RFC3339),
		ImagePath:       cover,
		Images:          images,
	}
}

func pageToResponse(page cataloguc.Page) productListResponse {
	items := make([]productResponse, len(page.Items))
	for i := range page.Items {
		items[i] = productToResponse(&page.Items[i])
	}
	return productListResponse{Items: items, Total: page.Total, Limit: page.Limit, Offset: page.Offset}
}

func matchToResponse(m *result.Match) recognizeItem {
	p := m.Product()
	images := m.Images()
	if images == nil {
		images = []string{}
	}
	return recognizeItem{
		ID: m.ProductID(),
		Product: recognizedProduct{
			ID:              p.ID(),
			ModelName:       p.ModelName(),
			ProductName:     p.ProductName(),
			Price:           p.Price(),
			MaintenanceTime: p.MaintenanceTime(),
			ImagePath:       m.BestImagePath(),
			Images:          images,
		},
		Score: m.Score(),
	}
}

func reportToResponse(rep ingestuc.Report) ingestResponse {
	entries := make([]ingestEntry, len(rep.Entries))
	for i, e := range rep.Entries {
		entries[i] = entryToResponse(e)
	}
	return ingestResponse{
		Status:          "success",
		NewProducts:     rep.NewProducts,
		ImagesAdded:     rep.ImagesAdded,
		UpdatedProducts: rep.UpdatedProducts,
		Skipped:         rep.Skipped,
		Entries:         entries,
	}
}

func entryToResponse(e dombatch.Result) ingestEntry {
	return ingestEntry{
		Name:      e.Name(),
		Status:    string(e.Status()),
		ProductID: e.ProductID(),
		Reason:    e.Reason(),
	}
}
