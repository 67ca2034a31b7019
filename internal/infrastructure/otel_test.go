package infrastructure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idschooldata/internal/config"
	"idschooldata/internal/shared/testutil"
)

func TestInitializeOTelPrometheus(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	providers, err := InitializeOTel(config.TelemetryConfig{
		ServiceName:    "idschooldata-test",
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1,
	}, "test", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	require.NotNil(t, providers.PrometheusHTTP)
	require.NotNil(t, providers.MeterProvider)
	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)

	metrics, err := NewPipelineMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordFetch(context.Background(), 2024, "wide", true, 10*time.Millisecond, nil)
	metrics.RecordFetch(context.Background(), 2024, "tidy", false, time.Second, errors.New("boom"))

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "enrollment_cache_hits")
	assert.Contains(t, string(body), "enrollment_cache_misses")
	assert.Contains(t, string(body), "enrollment_fetch_duration_seconds")
}

func TestInitializeOTelTwice(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := config.Default().Telemetry

	for i := 0; i < 2; i++ {
		providers, err := InitializeOTel(cfg, "test", logger)
		require.NoError(t, err)
		require.NoError(t, providers.Shutdown(context.Background()))
	}
}

func TestInitializeOTelUnsupportedExporter(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	_, err := InitializeOTel(config.TelemetryConfig{TraceExporter: "zipkin", MetricExporter: "none"}, "test", logger)
	assert.ErrorContains(t, err, "unsupported trace exporter")

	_, err = InitializeOTel(config.TelemetryConfig{TraceExporter: "none", MetricExporter: "statsd"}, "test", logger)
	assert.ErrorContains(t, err, "unsupported metric exporter")
}

func TestNoopProviders(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	providers := NoopProviders(logger)

	ctx, span := providers.Tracer.Start(context.Background(), "noop")
	span.End()
	assert.Empty(t, TraceIDFromContext(ctx))
	assert.NoError(t, providers.Shutdown(ctx))

	var nilMetrics *PipelineMetrics
	nilMetrics.RecordFetch(ctx, 2024, "wide", true, time.Millisecond, nil)
	NoopPipelineMetrics().RecordFetch(ctx, 2024, "wide", false, time.Millisecond, nil)
}
