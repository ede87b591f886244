package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"forecastcli/internal/calendar"
	"forecastcli/internal/dataset"
	"forecastcli/internal/infrastructure"
	"forecastcli/internal/scaling"
)

// confidenceRatio is the fixed proportional band applied around each point
// forecast. It is a heuristic carried over for behavioral parity, not a
// statistically derived interval.
const confidenceRatio = 0.10

// Request holds the per-call forecast options. Zero values fall back to
// the forecaster defaults: all series, today's date, configured horizon.
type Request struct {
	// HorizonDays is the number of future days to forecast. 0 uses the
	// configured default.
	HorizonDays int `validate:"min=0,max=365"`
	// SeriesNames selects which series to forecast. Empty selects all
	// columns present in the history.
	SeriesNames []string `validate:"omitempty,dive,required"`
	// StartDate is the first forecast day. Zero uses the current date
	// truncated to midnight UTC.
	StartDate time.Time
	// IncludeConfidence controls whether confidence bands are emitted.
	IncludeConfidence bool
}

// DefaultRequest returns a request with confidence bands enabled and all
// other options at their defaults.
func DefaultRequest() *Request {
	return &Request{IncludeConfidence: true}
}

// Options configures a Forecaster.
type Options struct {
	// LookbackDays is the fixed window length L fed to the predictor.
	LookbackDays int
	// DefaultHorizon is used when a request does not set one.
	DefaultHorizon int
	// MaxHorizon bounds requested horizons.
	MaxHorizon int
	// PredictionTimeout bounds the predictor invocation; 0 disables it.
	PredictionTimeout time.Duration
	// Scaler is the fitted transform loaded at construction; nil enables
	// the fallback window-max normalization.
	Scaler *scaling.MinMaxTransform
	// Metadata is the per-series unit/bounds side-table.
	Metadata MetadataTable
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// Metrics is optional; nil disables instrumentation.
	Metrics *infrastructure.PipelineMetrics
}

// Forecaster orchestrates the forecasting pipeline: windowing, calendar
// encoding, predictor invocation, denormalization and result assembly. It
// owns read-only references to the scaling transform and metadata table for
// its lifetime; the model handle may be shared with a Trainer, which swaps
// models atomically underneath.
type Forecaster struct {
	handle   *ModelHandle
	scaler   *scaling.MinMaxTransform
	metadata MetadataTable

	lookback       int
	defaultHorizon int
	maxHorizon     int
	timeout        time.Duration

	logger   *slog.Logger
	metrics  *infrastructure.PipelineMetrics
	tracer   trace.Tracer
	validate *validator.Validate
}

// New creates a forecaster around the given model handle.
func New(handle *ModelHandle, opts Options) (*Forecaster, error) {
	if handle == nil {
		return nil, fmt.Errorf("model handle is required")
	}
	if opts.LookbackDays <= 0 {
		return nil, fmt.Errorf("lookback days must be positive: %d", opts.LookbackDays)
	}

	if opts.DefaultHorizon <= 0 {
		opts.DefaultHorizon = 7
	}
	if opts.MaxHorizon <= 0 {
		opts.MaxHorizon = 365
	}
	if opts.MaxHorizon < opts.DefaultHorizon {
		return nil, fmt.Errorf("max horizon %d is smaller than default horizon %d",
			opts.MaxHorizon, opts.DefaultHorizon)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metadata := opts.Metadata
	if metadata == nil {
		metadata = MetadataTable{}
	}

	return &Forecaster{
		handle:         handle,
		scaler:         opts.Scaler,
		metadata:       metadata,
		lookback:       opts.LookbackDays,
		defaultHorizon: opts.DefaultHorizon,
		maxHorizon:     opts.MaxHorizon,
		timeout:        opts.PredictionTimeout,
		logger:         logger,
		metrics:        opts.Metrics,
		tracer:         otel.Tracer(infrastructure.MeterName),
		validate:       validator.New(),
	}, nil
}

// Lookback returns the fixed window length L.
func (f *Forecaster) Lookback() int {
	return f.lookback
}

// Predict runs the full pipeline over the supplied history and returns a
// multi-day forecast. Validation fails fast before the predictor is
// invoked; predictor failures propagate without retries or partial results.
func (f *Forecaster) Predict(ctx context.Context, history *dataset.Dataset, req *Request) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()

	ctx, span := f.tracer.Start(ctx, "forecast.Predict",
		trace.WithAttributes(attribute.String("forecast.run_id", runID)))
	defer span.End()

	logger := f.logger.With("run_id", runID)

	// Hard preconditions, checked before any numeric work
	predictor := f.handle.Active()
	if predictor == nil {
		return nil, ErrNotReady
	}
	if history == nil {
		return nil, ErrMissingData
	}
	if history.Len() == 0 {
		return nil, fmt.Errorf("%w: dataset has no rows", ErrMissingData)
	}

	if req == nil {
		req = DefaultRequest()
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid forecast request: %w", err)
	}

	horizon := req.HorizonDays
	if horizon == 0 {
		horizon = f.defaultHorizon
	}
	if horizon > f.maxHorizon {
		return nil, fmt.Errorf("horizon %d exceeds maximum %d", horizon, f.maxHorizon)
	}

	startDate := req.StartDate
	if startDate.IsZero() {
		now := time.Now().UTC()
		startDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	// Stage 1: window the history
	window, err := f.prepareWindow(ctx, history, req.SeriesNames)
	if err != nil {
		f.recordError(ctx)
		return nil, err
	}

	if f.metrics != nil {
		if window.paddedRows > 0 {
			f.metrics.PaddedWindowsTotal.Add(ctx, 1)
		}
		if len(window.dropped) > 0 {
			f.metrics.DroppedSeriesTotal.Add(ctx, int64(len(window.dropped)))
		}
	}

	// Stage 2: encode calendar context for each future day
	calendarFeatures := calendar.Encode(startDate, horizon)

	// Stage 3: opaque predictor invocation
	inferStart := time.Now()
	raw, err := predictWithDeadline(ctx, predictor, window.matrix, calendarFeatures, f.timeout)
	if err != nil {
		f.recordError(ctx)
		infrastructure.WithError(logger, err).ErrorContext(ctx, "prediction failed")
		return nil, err
	}
	if f.metrics != nil {
		f.metrics.PredictorDuration.Record(ctx, time.Since(inferStart).Seconds())
	}

	if len(raw) != horizon {
		f.recordError(ctx)
		return nil, fmt.Errorf("predictor returned %d rows, expected horizon %d", len(raw), horizon)
	}

	// Stages 4-6: denormalize, clamp, assemble
	result := f.assemble(raw, window, startDate, horizon, req.IncludeConfidence)
	result.RunID = runID

	if f.metrics != nil {
		f.metrics.ForecastsTotal.Add(ctx, 1)
		f.metrics.SeriesForecastTotal.Add(ctx, int64(len(window.honored)))
		f.metrics.ForecastDuration.Record(ctx, time.Since(start).Seconds())
	}

	logger.InfoContext(ctx, "forecast generated",
		"horizon_days", horizon,
		"series", len(window.honored),
		"dropped_series", len(window.dropped),
		"padded_rows", window.paddedRows,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// assemble turns the raw predictor output into the dated result structure,
// inverse-transforming back to native units when a fitted scaler is
// attached and clamping each mean to zero and to the series' declared
// bounds: neither quantities nor currency forecasts are meaningful below
// zero in this domain.
func (f *Forecaster) assemble(raw [][]float64, window *preparedWindow, startDate time.Time, horizon int, includeConfidence bool) *Result {
	days := make(map[string]DayForecast, horizon)

	for i := 0; i < horizon; i++ {
		date := startDate.AddDate(0, 0, i).Format("2006-01-02")
		day := make(DayForecast, len(window.honored))

		for j, name := range window.honored {
			var value float64
			if j < len(raw[i]) {
				value = raw[i][j]
			}

			if f.scaler != nil && f.scaler.Fitted {
				value = f.scaler.Inverse(name, value)
			}

			mean := value
			if mean < 0 {
				mean = 0
			}
			mean = f.metadata.Clamp(name, mean)

			point := Point{
				Mean: mean,
				Unit: f.metadata.Unit(name),
			}

			if includeConfidence {
				ci := mean * confidenceRatio
				lower := mean - ci
				if lower < 0 {
					lower = 0
				}
				upper := mean + ci
				point.Lower = &lower
				point.Upper = &upper
				point.ConfidenceInterval = &ci
			}

			day[name] = point
		}

		days[date] = day
	}

	return &Result{
		Days: days,
		Quality: Quality{
			Padded:        window.paddedRows > 0,
			PaddedRows:    window.paddedRows,
			DroppedSeries: window.dropped,
			HonoredSeries: window.honored,
		},
		GeneratedAt: time.Now().UTC(),
	}
}

func (f *Forecaster) recordError(ctx context.Context) {
	if f.metrics != nil {
		f.metrics.ForecastErrors.Add(ctx, 1)
	}
}
