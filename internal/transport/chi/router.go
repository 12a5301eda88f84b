package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kailas-cloud/photomatch/internal/metrics"
)

// Router builds the HTTP handler. Reads are public, mutations sit behind Bearer auth.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/products", s.ListProducts)
	r.Get("/products/{id}", s.GetProduct)
	r.Post("/recognize", s.Recognize)
	r.Get("/"+s.uploadPrefix+"/*", s.ServeUpload)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(s.apiKeys))

		r.Post("/products", s.CreateProduct)
		r.Put("/products/{id}", s.UpdateProduct)
		r.Delete("/products/{id}", s.DeleteProduct)
		r.Post("/products/batch-delete", s.BatchDelete)
		r.Post("/products/reorder-images", s.ReorderImages)
		r.Post("/products/{id}/upload-image", s.UploadImage)
		r.Delete("/images/{id}", s.DeleteImage)
		r.Post("/images/reextract", s.Reextract)
		r.Post("/batch-update", s.BatchUpdate)
	})

	return r
}
