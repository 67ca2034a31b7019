package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"idschooldata/internal/cache"
	"idschooldata/internal/config"
	apierrors "idschooldata/internal/errors"
	"idschooldata/internal/exporter"
	"idschooldata/internal/infrastructure"
	customMiddleware "idschooldata/internal/middleware"
	"idschooldata/internal/services"
	"idschooldata/internal/source"
	handlers "idschooldata/internal/transport/http"
	"idschooldata/pkg/contracts"
	"idschooldata/pkg/contracts/domain"
)

// Options overrides collaborators normally built from the configuration.
// Zero fields use the configured defaults.
type Options struct {
	Logger  *slog.Logger
	Fetcher services.RawFetcher
	Store   cache.Store
}

// Application is the wired enrollment service: pipeline, cache, exporter
// and the HTTP server in front of them.
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	Store         cache.Store
	Enrollment    *services.EnrollmentService
	Health        *services.HealthService
	Exporter      *exporter.Exporter
	Router        *chi.Mux
	Server        *http.Server

	closeLog func() error
}

// NewApplication creates a new application instance with dependency injection
func NewApplication(ctx context.Context, cfg *config.Config, opts Options) (*Application, error) {
	if cfg == nil {
		return nil, apierrors.NewConfigError("configuration is required", nil)
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, apierrors.NewConfigError("failed to resolve paths", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, apierrors.NewStorageError("failed to ensure directories", err)
	}

	a := &Application{
		Config:   cfg,
		Paths:    paths,
		Logger:   opts.Logger,
		closeLog: func() error { return nil },
	}

	if a.Logger == nil {
		logCfg := cfg.Logging
		if logCfg.FilePath != "" && !filepath.IsAbs(logCfg.FilePath) {
			logCfg.FilePath = filepath.Join(paths.BaseDir, logCfg.FilePath)
		}
		logger, closeLog, err := infrastructure.NewLogger(logCfg)
		if err != nil {
			return nil, apierrors.NewConfigError("failed to initialize logger", err)
		}
		a.Logger, a.closeLog = logger, closeLog
	}
	paths.LogPathResolution(a.Logger)

	a.OTelProviders, err = infrastructure.InitializeOTel(cfg.Telemetry, contracts.Version, a.Logger)
	if err != nil {
		a.closeLog()
		return nil, apierrors.NewConfigError("failed to initialize OpenTelemetry", err)
	}
	a.Metrics, err = infrastructure.NewPipelineMetrics(a.OTelProviders.Meter)
	if err != nil {
		a.Close(ctx)
		return nil, apierrors.NewConfigError("failed to create metrics", err)
	}

	if err := a.initializeServices(ctx, opts); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.setupRouter()
	a.createServer()

	a.Logger.InfoContext(ctx, "application initialized",
		slog.String("version", contracts.Version),
		slog.String("cache_backend", a.cacheBackend()),
		slog.Int("min_year", cfg.Years.Min),
		slog.Int("max_year", cfg.Years.Max))
	return a, nil
}

// initializeServices opens the cache and builds the service layer
func (a *Application) initializeServices(ctx context.Context, opts Options) error {
	a.Store = opts.Store
	if a.Store == nil {
		store, err := cache.New(ctx, a.Config.Cache, a.Paths, a.Logger)
		if err != nil {
			return apierrors.NewStorageError("failed to open cache", err)
		}
		a.Store = store
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		client := source.NewClient(source.OptionsFromConfig(a.Config.Source, a.Paths.DownloadsDir), a.Logger, a.Metrics)
		fetcher = source.NewFetcher(client, a.Config.Source, a.Logger)
	}

	a.Enrollment = services.NewEnrollmentService(fetcher, a.Store, services.EnrollmentServiceOptions{
		Years:   domain.YearRange{Min: a.Config.Years.Min, Max: a.Config.Years.Max},
		Tracer:  a.OTelProviders.Tracer,
		Metrics: a.Metrics,
	}, a.Logger)
	a.Health = services.NewHealthService(contracts.Version, contracts.BuildTime, a.Paths.DataDir, a.Store, a.Logger)
	a.Exporter = exporter.NewExporter(a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	errorHandler := apierrors.NewErrorHandler(a.Logger, false)
	health := handlers.NewHealthHandler(a.Health, a.Logger)
	enrollment := handlers.NewEnrollmentHandler(a.Enrollment, a.cacheBackend(), a.Logger, errorHandler)
	metrics := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP)

	r := chi.NewRouter()

	// RequestID → RealIP → OTel → Logger → Recoverer
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Get("/health", health.HealthCheck)
	r.Get("/health/ready", health.ReadinessCheck)
	r.Get("/version", health.Version)
	r.Mount("/metrics", metrics.Routes())

	r.Group(func(r chi.Router) {
		if a.Config.Server.RateLimitRPS > 0 {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Server.RateLimitRPS,
				a.Config.Server.RateLimitBurst,
				a.Logger,
			).Handler)
		}
		r.Use(middleware.Timeout(a.Config.Server.RequestTimeout))
		r.Use(customMiddleware.Compress(5))

		r.Mount("/api/"+contracts.APIVersion, enrollment.Routes())
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.Port)),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

func (a *Application) cacheBackend() string {
	if a.Config.Cache.Backend == "" {
		return config.CacheBackendFile
	}
	return a.Config.Cache.Backend
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.Logger.InfoContext(ctx, "server listening", slog.String("address", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return <-errCh
}

// Run listens on the configured address until SIGINT or SIGTERM
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Close releases the cache, flushes telemetry and closes the log file
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if err := a.shutdownTelemetry(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.closeLog(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	return errors.Join(errs...)
}

func (a *Application) shutdownTelemetry(ctx context.Context) error {
	if a.OTelProviders == nil {
		return nil
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		return err
	}
	return nil
}
