package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
	"github.com/kailas-cloud/photomatch/internal/domain/search/result"
	"github.com/kailas-cloud/photomatch/internal/logger"
	"github.com/kailas-cloud/photomatch/internal/storage"
	cataloguc "github.com/kailas-cloud/photomatch/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/photomatch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/photomatch/internal/usecase/ingest"
)

// DefaultMaxUploadBytes caps multipart request bodies.
const DefaultMaxUploadBytes = 64 << 20

// multipartMemory is the part of a multipart body kept in memory before spilling to disk.
const multipartMemory = 32 << 20

// Catalog is the product management surface.
type Catalog interface {
	Create(ctx context.Context, in cataloguc.Input, files []cataloguc.File) (cataloguc.CreateResult, error)
	UploadImage(ctx context.Context, productID int64, f cataloguc.File) (cataloguc.UploadResult, error)
	Get(ctx context.Context, id int64) (product.Product, error)
	Update(ctx context.Context, id int64, u product.Update) (product.Product, error)
	List(ctx context.Context, limit, offset int, search string) (cataloguc.Page, error)
	Delete(ctx context.Context, id int64) error
	DeleteMany(ctx context.Context, ids []int64) (int, error)
	DeleteImage(ctx context.Context, id int64) error
	ReorderImages(ctx context.Context, updates []product.OrderUpdate) error
	Reextract(ctx context.Context) (cataloguc.ReextractResult, error)
}

// Recognizer ranks catalog products against a query photo.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, filename string, k int) ([]result.Match, error)
}

// Ingester runs bulk archive ingestion.
type Ingester interface {
	Ingest(ctx context.Context, archive []byte) (ingestuc.Report, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// FileReader streams stored images.
type FileReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers of the catalog API.
type Server struct {
	catalog        Catalog
	recognizer     Recognizer
	ingester       Ingester
	health         HealthChecker
	files          FileReader
	logger         *zap.Logger
	apiKeys        []string
	uploadPrefix   string
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	catalog Catalog,
	recognizer Recognizer,
	ingester Ingester,
	health HealthChecker,
	files FileReader,
	logger *zap.Logger,
) *Server {
	s := &Server{
		catalog:        catalog,
		recognizer:     recognizer,
		ingester:       ingester,
		health:         health,
		files:          files,
		logger:         logger,
		uploadPrefix:   "uploads",
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrDecodeFailure, http.StatusBadRequest, codeDecodeFailed),
		sentinelHandler(domain.ErrExtractionFailure, http.StatusBadRequest, codeExtractionFailed),
		sentinelHandler(domain.ErrInvalidArchive, http.StatusBadRequest, codeInvalidArchive),
		sentinelHandler(domain.ErrIntegrityConflict, http.StatusConflict, codeConflict),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrExtractorUnavailable, http.StatusServiceUnavailable, codeExtractorUnavailable),
		payloadTooLargeHandler,
	}
	return s
}

// WithAPIKeys protects mutating routes with Bearer keys.
func (s *Server) WithAPIKeys(keys []string) *Server {
	s.apiKeys = keys
	return s
}

// WithUploadPrefix sets the storage prefix served under GET /<prefix>/*.
func (s *Server) WithUploadPrefix(prefix string) *Server {
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		s.uploadPrefix = prefix
	}
	return s
}

// WithMaxUploadBytes caps multipart bodies.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// ListProducts handles GET /products.
func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be an integer")
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "offset must be an integer")
		return
	}

	page, err := s.catalog.List(r.Context(), limit, offset, q.Get("search"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

// GetProduct handles GET /products/{id}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productToResponse(&p))
}

// CreateProduct handles POST /products (multipart).
func (s *Server) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}

	price, err := parsePrice(r.FormValue("price"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	files, err := readFiles(r.MultipartForm, "files")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.catalog.Create(r.Context(), cataloguc.Input{
		ModelName:       r.FormValue("model_name"),
		ProductName:     r.FormValue("product_name"),
		Price:           price,
		MaintenanceTime: r.FormValue("maintenance_time"),
	}, files)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createProductResponse{ID: res.ID, Status: res.Status, ImagesCount: res.ImagesCount})
}

// UpdateProduct handles PUT /products/{id}.
func (s *Server) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	_, err := s.catalog.Update(r.Context(), id, product.Update{
		ModelName:       req.ModelName,
		ProductName:     req.ProductName,
		Price:           req.Price,
		MaintenanceTime: req.MaintenanceTime,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "updated"})
}

// DeleteProduct handles DELETE /products/{id}.
func (s *Server) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

// BatchDelete handles POST /products/batch-delete.
func (s *Server) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	n, err := s.catalog.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted", Count: &n})
}

// ReorderImages handles POST /products/reorder-images.
func (s *Server) ReorderImages(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	updates := make([]product.OrderUpdate, len(req.Items))
	for i, it := range req.Items {
		updates[i] = product.OrderUpdate{ImageID: it.ID, Order: it.Order}
	}
	if err := s.catalog.ReorderImages(r.Context(), updates); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// UploadImage handles POST /products/{id}/upload-image (multipart "file").
func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}
	f, err := readFile(r.MultipartForm, "file")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.catalog.UploadImage(r.Context(), id, f)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadImageResponse{ID: res.ID, ImagePath: res.ImagePath, Status: res.Status})
}

// DeleteImage handles DELETE /images/{id}.
func (s *Server) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.DeleteImage(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

// Reextract handles POST /images/reextract.
func (s *Server) Reextract(w http.ResponseWriter, r *http.Request) {
	res, err := s.catalog.Reextract(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reextractResponse{Updated: res.Updated, Failed: res.Failed})
}

// Recognize handles POST /recognize (multipart "file", optional ?k=).
func (s *Server) Recognize(w http.ResponseWriter, r *http.Request) {
	k, err := queryInt(r.URL.Query().Get("k"))
	if err != nil || k < 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "k must be a non-negative integer")
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}
	f, err := readFile(r.MultipartForm, "file")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	matches, err := s.recognizer.Recognize(r.Context(), f.Data, f.Name, k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]recognizeItem, len(matches))
	for i := range matches {
		items[i] = matchToResponse(&matches[i])
	}
	writeJSON(w, http.StatusOK, items)
}

// BatchUpdate handles POST /batch-update (multipart "file", a .zip archive).
func (s *Server) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	f, err := readFile(r.MultipartForm, "file")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if !strings.HasSuffix(strings.ToLower(f.Name), ".zip") {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "file must be a .zip archive")
		return
	}

	rep, err := s.ingester.Ingest(r.Context(), f.Data)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportToResponse(rep))
}

// ServeUpload handles GET /<upload prefix>/*.
func (s *Server) ServeUpload(w http.ResponseWriter, r *http.Request) {
	key, err := storage.CleanKey(s.uploadPrefix + "/" + chi.URLParam(r, "*"))
	if err != nil || !strings.HasPrefix(key, s.uploadPrefix+"/") {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}

	data, err := s.files.Read(r.Context(), key)
	if errors.Is(err, storage.ErrNotExist) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", storage.ContentType(key))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart form")
		return false
	}
	return true
}

func readFiles(form *multipart.Form, field string) ([]cataloguc.File, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	files := make([]cataloguc.File, 0, len(headers))
	for _, h := range headers {
		f, err := readHeader(h)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func readFile(form *multipart.Form, field string) (cataloguc.File, error) {
	if form == nil || len(form.File[field]) == 0 {
		return cataloguc.File{}, fmt.Errorf("multipart field %q is required: %w", field, domain.ErrInvalidInput)
	}
	return readHeader(form.File[field][0])
}

func readHeader(h *multipart.FileHeader) (cataloguc.File, error) {
	f, err := h.Open()
	if err != nil {
		return cataloguc.File{}, fmt.Errorf("open upload %q: %w", h.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return cataloguc.File{}, fmt.Errorf("read upload %q: %w", h.Filename, err)
	}
	return cataloguc.File{Name: h.Filename, Data: data}, nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// parsePrice accepts an empty value (unknown price) or a non-negative decimal.
func parsePrice(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return 0, fmt.Errorf("price must be a non-negative number, got %q", v)
	}
	return d.InexactFloat64(), nil
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client message without exposing internals.
// NotFoundError names the missing resource.
func safeDomainMessage(err error) string {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidInput,
		domain.ErrDecodeFailure,
		domain.ErrExtractionFailure,
		domain.ErrInvalidArchive,
		domain.ErrIntegrityConflict,
		domain.ErrVectorDimMismatch,
		domain.ErrExtractorUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func payloadTooLargeHandler(w http.ResponseWriter, err error, _ string) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}
	writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "request body too large")
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
