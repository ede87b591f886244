package infrastructure

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// TestOTelInitialization covers provider setup, pipeline metric creation
// and trace ID propagation in a single pass: the Prometheus exporter
// registers collectors on the default registry, so OTel can only be
// initialized once per test binary.
func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := DefaultOTelConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "prometheus"

	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)
	defer providers.Shutdown(context.Background())

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	t.Run("pipeline_metrics", func(t *testing.T) {
		metrics, err := CreatePipelineMetrics(providers.Meter)
		require.NoError(t, err)
		require.NotNil(t, metrics)

		assert.NotNil(t, metrics.ForecastsTotal)
		assert.NotNil(t, metrics.ForecastDuration)
		assert.NotNil(t, metrics.ForecastErrors)
		assert.NotNil(t, metrics.PredictorDuration)
		assert.NotNil(t, metrics.PaddedWindowsTotal)
		assert.NotNil(t, metrics.DroppedSeriesTotal)
		assert.NotNil(t, metrics.SeriesForecastTotal)
		assert.NotNil(t, metrics.TrainingRunsTotal)
		assert.NotNil(t, metrics.TrainingEpochsTotal)
		assert.NotNil(t, metrics.TrainingDuration)
		assert.NotNil(t, metrics.ModelSwapsTotal)

		// Instruments must be usable without panicking
		ctx := context.Background()
		metrics.ForecastsTotal.Add(ctx, 1)
		metrics.ForecastDuration.Record(ctx, 0.042)
	})

	t.Run("trace_id_from_context", func(t *testing.T) {
		ctx := context.Background()
		assert.Empty(t, TraceIDFromContext(ctx))

		tracer := otel.Tracer("test")
		ctx, span := tracer.Start(ctx, "test-span")
		defer span.End()

		traceID := TraceIDFromContext(ctx)
		assert.NotEmpty(t, traceID)
		assert.Equal(t, span.SpanContext().TraceID().String(), traceID)

		// Logger-facing trace IDs ride on the context separately
		ctx = WithTraceID(ctx, traceID)
		assert.Equal(t, traceID, GetTraceID(ctx))
	})
}

func TestDefaultOTelConfig(t *testing.T) {
	cfg := DefaultOTelConfig()

	assert.Equal(t, ServiceName, cfg.ServiceName)
	assert.Equal(t, ServiceVersion, cfg.ServiceVersion)
	assert.True(t, cfg.EnableMetrics)
	assert.True(t, cfg.EnableTracing)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}
