package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MetricsHandler exposes the Prometheus scrape endpoint
type MetricsHandler struct {
	scrape http.Handler
}

// NewMetricsHandler wraps the exporter handler. A nil handler answers 404,
// which is what a scraper sees when metrics are disabled.
func NewMetricsHandler(scrape http.Handler) *MetricsHandler {
	return &MetricsHandler{scrape: scrape}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetMetrics)
	return r
}

// GetMetrics handles GET /metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.scrape == nil {
		http.NotFound(w, r)
		return
	}
	h.scrape.ServeHTTP(w, r)
}
