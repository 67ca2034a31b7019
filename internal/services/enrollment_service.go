package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"idschooldata/internal/cache"
	"idschooldata/internal/dataprocessing"
	apperrors "idschooldata/internal/errors"
	"idschooldata/internal/infrastructure"
	"idschooldata/pkg/contracts/domain"
)

// RawFetcher retrieves the raw district and building tables for an end
// year. refresh bypasses any locally downloaded copy.
type RawFetcher interface {
	FetchRaw(ctx context.Context, endYear int, refresh bool) (*domain.RawData, error)
}

// FetchOptions controls a single FetchEnr call
type FetchOptions struct {
	Tidy         bool
	UseCache     bool
	ForceRefresh bool
}

// DefaultFetchOptions returns wide output read through the cache
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{UseCache: true}
}

// EnrollmentServiceOptions carries the optional collaborators of an
// EnrollmentService.
type EnrollmentServiceOptions struct {
	Years      domain.YearRange
	Builder    *dataprocessing.RecordBuilder
	Summarizer *dataprocessing.Summarizer
	Tracer     trace.Tracer
	Metrics    *infrastructure.PipelineMetrics
}

// EnrollmentService runs the enrollment pipeline: validate the year, serve
// from the cache, or fetch, build, reshape and store.
type EnrollmentService struct {
	fetcher    RawFetcher
	store      cache.Store
	years      domain.YearRange
	builder    *dataprocessing.RecordBuilder
	summarizer *dataprocessing.Summarizer
	tracer     trace.Tracer
	metrics    *infrastructure.PipelineMetrics
	logger     *slog.Logger
	group      singleflight.Group
}

// NewEnrollmentService creates the service. A nil store selects an
// in-memory cache; a nil logger selects slog.Default.
func NewEnrollmentService(fetcher RawFetcher, store cache.Store, opts EnrollmentServiceOptions, logger *slog.Logger) *EnrollmentService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "enrollment_service")

	if store == nil {
		store = cache.NewMemoryStore()
	}
	if opts.Builder == nil {
		opts.Builder = dataprocessing.NewRecordBuilder(nil)
	}
	if opts.Summarizer == nil {
		opts.Summarizer = dataprocessing.NewSummarizer(logger, dataprocessing.DefaultSummarizerConfig())
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.InstrumentationName)
	}
	if opts.Metrics == nil {
		opts.Metrics = infrastructure.NoopPipelineMetrics()
	}

	logger.Info("EnrollmentService initialized",
		slog.Int("min_year", opts.Years.Min),
		slog.Int("max_year", opts.Years.Max))

	return &EnrollmentService{
		fetcher:    fetcher,
		store:      store,
		years:      opts.Years,
		builder:    opts.Builder,
		summarizer: opts.Summarizer,
		tracer:     opts.Tracer,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// AvailableYears returns the inclusive range of end years the service
// accepts.
func (s *EnrollmentService) AvailableYears() domain.YearRange {
	return s.years
}

// FetchEnr returns the enrollment table for one end year.
//
// Concurrent calls with the same year, shape and cache options share one
// pipeline run and receive the same table; callers must not modify it. The
// shared run is detached from any single caller's cancellation, so a caller
// that gives up returns its own context error while the others keep waiting.
func (s *EnrollmentService) FetchEnr(ctx context.Context, endYear int, opts FetchOptions) (*domain.EnrollmentTable, error) {
	if !s.years.Contains(endYear) {
		return nil, apperrors.NewInvalidYearError(endYear, s.years.Min, s.years.Max, ErrInvalidYear)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shape := domain.ShapeFor(opts.Tidy)
	ctx, span := s.tracer.Start(ctx, "EnrollmentService.FetchEnr",
		trace.WithAttributes(
			attribute.Int("end_year", endYear),
			attribute.String("shape", string(shape)),
			attribute.Bool("use_cache", opts.UseCache),
			attribute.Bool("force_refresh", opts.ForceRefresh),
		))
	defer span.End()

	start := time.Now()
	runCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flightKey(endYear, shape, opts), func() (interface{}, error) {
		return s.run(runCtx, endYear, shape, opts)
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		r.Err = ctx.Err()
	}
	if r.Err != nil {
		infrastructure.RecordError(ctx, r.Err)
		s.metrics.RecordFetch(ctx, endYear, string(shape), false, time.Since(start), r.Err)
		return nil, r.Err
	}

	res := r.Val.(runResult)
	span.SetAttributes(
		attribute.Bool("cache_hit", res.cacheHit),
		attribute.Bool("shared", r.Shared),
		attribute.Int("rows", res.table.Len()),
	)
	s.metrics.RecordFetch(ctx, endYear, string(shape), res.cacheHit, time.Since(start), nil)
	return res.table, nil
}

// flightKey separates runs that may read the cache from forced or uncached
// ones, so a refresh never joins a run that serves the old entry.
func flightKey(endYear int, shape domain.Shape, opts FetchOptions) string {
	key := cache.Key{EndYear: endYear, Shape: shape}.String()
	if !opts.UseCache {
		key += "|nocache"
	}
	if opts.ForceRefresh {
		key += "|refresh"
	}
	return key
}

type runResult struct {
	table    *domain.EnrollmentTable
	cacheHit bool
}

func (s *EnrollmentService) run(ctx context.Context, endYear int, shape domain.Shape, opts FetchOptions) (runResult, error) {
	if opts.UseCache && !opts.ForceRefresh {
		table, err := s.store.Read(ctx, endYear, shape)
		switch {
		case err == nil:
			s.logger.DebugContext(ctx, "serving enrollment from cache",
				slog.Int("end_year", endYear),
				slog.String("shape", string(shape)))
			return runResult{table: table, cacheHit: true}, nil
		case errors.Is(err, cache.ErrNotFound):
		case ctx.Err() != nil:
			return runResult{}, ctx.Err()
		default:
			s.logger.WarnContext(ctx, "cache read failed, rebuilding from source",
				slog.Int("end_year", endYear),
				slog.String("shape", string(shape)),
				slog.String("error", err.Error()))
		}
	}

	table, err := s.build(ctx, endYear, shape, opts.ForceRefresh)
	if err != nil {
		return runResult{}, err
	}

	if opts.UseCache {
		if err := s.store.Write(ctx, table, endYear, shape); err != nil {
			s.logger.WarnContext(ctx, "cache write failed",
				slog.Int("end_year", endYear),
				slog.String("shape", string(shape)),
				slog.String("error", err.Error()))
		}
	}
	return runResult{table: table}, nil
}

func (s *EnrollmentService) build(ctx context.Context, endYear int, shape domain.Shape, refresh bool) (*domain.EnrollmentTable, error) {
	raw, err := s.fetcher.FetchRaw(ctx, endYear, refresh)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewSourceError(fmt.Sprintf("fetch raw enrollment for %d", endYear), err).
			WithContext("end_year", endYear)
	}

	result, err := s.builder.ProcessEnr(raw, endYear)
	if err != nil {
		return nil, apperrors.NewSchemaError(fmt.Sprintf("build enrollment records for %d", endYear), err).
			WithContext("end_year", endYear)
	}

	for _, w := range result.Warnings {
		s.logger.WarnContext(ctx, "reporting level skipped",
			slog.Int("end_year", endYear),
			slog.String("warning", w))
	}
	if n := len(result.Warnings); n > 0 {
		s.metrics.SchemaWarnings.Add(ctx, int64(n))
	}

	if result.Empty() {
		noData := apperrors.NewNoDataError(endYear, ErrNoDataForYear)
		if len(result.Warnings) > 0 {
			noData.WithContext("warnings", result.Warnings)
		}
		return nil, noData
	}

	summary := s.summarizer.Summarize(ctx, result)
	s.logger.InfoContext(ctx, "enrollment year processed",
		slog.Int("end_year", endYear),
		slog.Int("districts", summary.DistrictCount),
		slog.Int("campuses", summary.CampusCount),
		slog.Bool("within_tolerance", summary.WithinTolerance))

	records := result.Records()
	s.metrics.RecordsProduced.Add(ctx, int64(len(records)))

	table := &domain.EnrollmentTable{Shape: shape, Warnings: result.Warnings}
	if shape == domain.ShapeTidy {
		table.Tidy = dataprocessing.Tidy(records)
	} else {
		table.Wide = records
	}
	return table, nil
}

// FetchEnrMulti fetches each year in order and concatenates the tables.
// The first failing year fails the whole call.
func (s *EnrollmentService) FetchEnrMulti(ctx context.Context, years []int, opts FetchOptions) (*domain.EnrollmentTable, error) {
	if len(years) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "at least one end year is required", ErrNoYearsRequested)
	}
	for _, y := range years {
		if !s.years.Contains(y) {
			return nil, apperrors.NewInvalidYearError(y, s.years.Min, s.years.Max, ErrInvalidYear)
		}
	}

	out := &domain.EnrollmentTable{Shape: domain.ShapeFor(opts.Tidy)}
	for _, y := range years {
		table, err := s.FetchEnr(ctx, y, opts)
		if err != nil {
			return nil, fmt.Errorf("end year %d: %w", y, err)
		}
		out.Append(table)
	}
	return out, nil
}

// CacheStatus lists the cached entries, ordered by year then shape
func (s *EnrollmentService) CacheStatus(ctx context.Context) ([]cache.Key, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("list cache entries", err)
	}
	return keys, nil
}

// ClearCache removes cached entries. Nil arguments match every year or
// shape.
func (s *EnrollmentService) ClearCache(ctx context.Context, endYear *int, shape *domain.Shape) ([]cache.Key, error) {
	if shape != nil && !shape.Valid() {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
			fmt.Sprintf("shape must be %q or %q", domain.ShapeWide, domain.ShapeTidy), ErrInvalidShape)
	}

	removed, err := cache.Clear(ctx, s.store, cache.Filter{EndYear: endYear, Shape: shape})
	if err != nil {
		return removed, apperrors.NewStorageError("clear cache", err)
	}
	s.logger.InfoContext(ctx, "cache cleared", slog.Int("removed", len(removed)))
	return removed, nil
}
