package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "idschooldata/internal/errors"
	"idschooldata/internal/exporter"
	custommw "idschooldata/internal/middleware"
	"idschooldata/internal/services"
	api "idschooldata/pkg/contracts/api/v1"
	"idschooldata/pkg/contracts/domain"
)

var contentTypes = map[exporter.Format]string{
	exporter.FormatCSV:     "text/csv; charset=utf-8",
	exporter.FormatParquet: "application/vnd.apache.parquet",
}

// EnrollmentHandler serves enrollment tables and cache administration
type EnrollmentHandler struct {
	service      EnrollmentServiceInterface
	exporter     *exporter.Exporter
	validator    *custommw.RequestValidator
	errorHandler *apierrors.ErrorHandler
	cacheBackend string
	logger       *slog.Logger
}

// NewEnrollmentHandler creates the handler. cacheBackend is reported by the
// cache status endpoint.
func NewEnrollmentHandler(service EnrollmentServiceInterface, cacheBackend string, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *EnrollmentHandler {
	return &EnrollmentHandler{
		service:      service,
		exporter:     exporter.NewExporter(logger),
		validator:    custommw.NewRequestValidator(),
		errorHandler: errorHandler,
		cacheBackend: cacheBackend,
		logger:       logger.With(slog.String("component", "enrollment_handler")),
	}
}

// Routes returns the enrollment routes, mounted under /api/v1
func (h *EnrollmentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/years", h.GetYears)

	r.Route("/enrollment", func(r chi.Router) {
		r.Get("/", h.GetEnrollmentMulti)
		r.Get("/{year}", h.GetEnrollment)
	})

	r.Route("/cache", func(r chi.Router) {
		r.Get("/", h.GetCacheStatus)
		r.Delete("/", h.ClearCache)
	})
	return r
}

// GetEnrollment handles GET /api/v1/enrollment/{year}
func (h *EnrollmentHandler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	req := api.EnrollmentRequest{UseCache: true}

	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidParameterError("year", err))
		return
	}
	req.EndYear = year

	if err := parseQueryFlags(r, map[string]*bool{
		"tidy":    &req.Tidy,
		"cache":   &req.UseCache,
		"refresh": &req.Refresh,
	}); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	req.Format = r.URL.Query().Get("format")

	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "fetching enrollment",
		slog.Int("end_year", req.EndYear),
		slog.Bool("tidy", req.Tidy),
		slog.String("request_id", middleware.GetReqID(r.Context())))

	table, err := h.service.FetchEnr(r.Context(), req.EndYear, services.FetchOptions{
		Tidy:         req.Tidy,
		UseCache:     req.UseCache,
		ForceRefresh: req.Refresh,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.respond(w, r, []int{req.EndYear}, table, req.Format)
}

// GetEnrollmentMulti handles GET /api/v1/enrollment?years=2023,2024
func (h *EnrollmentHandler) GetEnrollmentMulti(w http.ResponseWriter, r *http.Request) {
	req := api.EnrollmentMultiRequest{UseCache: true}

	years, err := parseYears(r.URL.Query().Get("years"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidParameterError("years", err))
		return
	}
	req.EndYears = years

	if err := parseQueryFlags(r, map[string]*bool{
		"tidy":  &req.Tidy,
		"cache": &req.UseCache,
	}); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	req.Format = r.URL.Query().Get("format")

	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	table, err := h.service.FetchEnrMulti(r.Context(), req.EndYears, services.FetchOptions{
		Tidy:     req.Tidy,
		UseCache: req.UseCache,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.respond(w, r, req.EndYears, table, req.Format)
}

func (h *EnrollmentHandler) respond(w http.ResponseWriter, r *http.Request, years []int, table *domain.EnrollmentTable, format string) {
	if format == "" || format == string(exporter.FormatJSON) {
		render.JSON(w, r, api.EnrollmentResponse{
			EndYears: years,
			Table:    table,
			RowCount: table.Len(),
		})
		return
	}

	f := exporter.Format(format)
	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, table, f); err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("render %s: %w", format, err))
		return
	}

	name := fmt.Sprintf("enrollment_%s_%s.%s", joinYears(years), table.Shape, format)
	w.Header().Set("Content-Type", contentTypes[f])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetYears handles GET /api/v1/years
func (h *EnrollmentHandler) GetYears(w http.ResponseWriter, r *http.Request) {
	yr := h.service.AvailableYears()
	render.JSON(w, r, api.YearsResponse{
		MinYear: yr.Min,
		MaxYear: yr.Max,
		Years:   yr.Years(),
	})
}

// GetCacheStatus handles GET /api/v1/cache
func (h *EnrollmentHandler) GetCacheStatus(w http.ResponseWriter, r *http.Request) {
	keys, err := h.service.CacheStatus(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	entries := make([]api.CacheEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, api.CacheEntry{EndYear: k.EndYear, Shape: k.Shape})
	}
	render.JSON(w, r, api.CacheStatusResponse{Backend: h.cacheBackend, Entries: entries})
}

// ClearCache handles DELETE /api/v1/cache[?year=&shape=]
func (h *EnrollmentHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	var req api.CacheClearRequest
	q := r.URL.Query()

	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidParameterError("year", err))
			return
		}
		req.EndYear = &year
	}
	if v := q.Get("shape"); v != "" {
		shape := domain.Shape(v)
		req.Shape = &shape
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	removed, err := h.service.ClearCache(r.Context(), req.EndYear, req.Shape)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.CacheClearResponse{Removed: len(removed)})
}

func parseQueryFlags(r *http.Request, flags map[string]*bool) error {
	q := r.URL.Query()
	for name, dst := range flags {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apierrors.InvalidParameterError(name, err)
		}
		*dst = b
	}
	return nil
}

// parseYears accepts a comma separated list of end years, in request order
func parseYears(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	years := make([]int, 0, len(parts))
	for _, p := range parts {
		y, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%q is not a year", p)
		}
		years = append(years, y)
	}
	return years, nil
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, "-")
}
