package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecastcli/internal/dataset"
	"forecastcli/internal/scaling"
	"forecastcli/internal/shared/testutil"
)

// stubPredictor returns value(i, j) for day i, series j.
type stubPredictor struct {
	value func(i, j int) float64
	err   error
	// block makes Predict wait for ctx cancellation, for timeout tests
	block bool
	calls int
}

func (s *stubPredictor) Predict(ctx context.Context, window [][]float64, calendarFeatures [][]float64) ([][]float64, error) {
	s.calls++

	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}

	n := 0
	if len(window) > 0 {
		n = len(window[0])
	}

	out := make([][]float64, len(calendarFeatures))
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = s.value(i, j)
		}
	}
	return out, nil
}

func constantPredictor(v float64) *stubPredictor {
	return &stubPredictor{value: func(i, j int) float64 { return v }}
}

func newTestForecaster(t *testing.T, p Predictor, opts Options) *Forecaster {
	t.Helper()

	if opts.LookbackDays == 0 {
		opts.LookbackDays = 30
	}
	f, err := New(NewModelHandle(p), opts)
	require.NoError(t, err)
	return f
}

// historyOf builds rows of daily history for the given series, ending
// before the given start date.
func historyOf(t *testing.T, rows int, start time.Time, values map[string]func(i int) float64) *dataset.Dataset {
	t.Helper()

	ds := dataset.New()
	first := start.AddDate(0, 0, -rows)
	for i := 0; i < rows; i++ {
		row := make(map[string]float64, len(values))
		for name, fn := range values {
			row[name] = fn(i)
		}
		require.NoError(t, ds.AppendRow(first.AddDate(0, 0, i), row))
	}
	return ds
}

var marchFirst = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestPredictScenario(t *testing.T) {
	// 60 daily rows for flour and tomato, 7 day horizon from 2025-03-01
	history := historyOf(t, 60, marchFirst, map[string]func(i int) float64{
		"flour":  func(i int) float64 { return 10 + float64(i%7) },
		"tomato": func(i int) float64 { return 25 + float64(i%5) },
	})

	f := newTestForecaster(t, constantPredictor(0.5), Options{LookbackDays: 30})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays:       7,
		StartDate:         marchFirst,
		IncludeConfidence: true,
	})
	require.NoError(t, err)

	// Exactly 7 date keys, 2025-03-01 through 2025-03-07
	require.Len(t, result.Days, 7)
	for d := 1; d <= 7; d++ {
		key := fmt.Sprintf("2025-03-%02d", d)
		day, ok := result.Days[key]
		require.True(t, ok, "missing date key %s", key)
		require.Len(t, day, 2)

		for _, name := range []string{"flour", "tomato"} {
			point, ok := day[name]
			require.True(t, ok, "missing series %s on %s", name, key)

			assert.GreaterOrEqual(t, point.Mean, 0.0)
			require.NotNil(t, point.Lower)
			require.NotNil(t, point.Upper)
			require.NotNil(t, point.ConfidenceInterval)
			assert.GreaterOrEqual(t, *point.Lower, 0.0)
			assert.LessOrEqual(t, *point.Lower, point.Mean)
			assert.LessOrEqual(t, point.Mean, *point.Upper)
			assert.InDelta(t, point.Mean*0.10, *point.ConfidenceInterval, 1e-12)
			assert.Equal(t, DefaultUnit, point.Unit)
		}
	}

	assert.False(t, result.Quality.Degraded())
	assert.Equal(t, []string{"flour", "tomato"}, result.Quality.HonoredSeries)
	assert.NotEmpty(t, result.RunID)
}

func TestPredictNoPredictor(t *testing.T) {
	f := newTestForecaster(t, nil, Options{})

	history := historyOf(t, 10, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 1 },
	})

	_, err := f.Predict(context.Background(), history, DefaultRequest())
	assert.ErrorIs(t, err, ErrNotReady)

	// NotReady wins regardless of other argument problems
	_, err = f.Predict(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestPredictMissingHistory(t *testing.T) {
	f := newTestForecaster(t, constantPredictor(1), Options{})

	_, err := f.Predict(context.Background(), nil, DefaultRequest())
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestPredictIdempotent(t *testing.T) {
	history := historyOf(t, 45, marchFirst, map[string]func(i int) float64{
		"revenue": func(i int) float64 { return 1000 + 10*float64(i) },
	})

	f := newTestForecaster(t, &stubPredictor{value: func(i, j int) float64 {
		return float64(i) * 1.5
	}}, Options{LookbackDays: 30})

	req := &Request{HorizonDays: 5, StartDate: marchFirst, IncludeConfidence: true}

	first, err := f.Predict(context.Background(), history, req)
	require.NoError(t, err)
	second, err := f.Predict(context.Background(), history, req)
	require.NoError(t, err)

	assert.Equal(t, first.Days, second.Days)
}

func TestPredictClampsNegatives(t *testing.T) {
	history := historyOf(t, 30, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 5 },
	})

	f := newTestForecaster(t, constantPredictor(-3), Options{LookbackDays: 30})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 3, StartDate: marchFirst, IncludeConfidence: true,
	})
	require.NoError(t, err)

	for _, day := range result.Days {
		for _, point := range day {
			assert.Equal(t, 0.0, point.Mean)
			assert.Equal(t, 0.0, *point.Lower)
			assert.Equal(t, 0.0, *point.Upper)
			assert.Equal(t, 0.0, *point.ConfidenceInterval)
		}
	}
}

func TestPredictWithoutConfidence(t *testing.T) {
	history := historyOf(t, 30, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 5 },
	})

	f := newTestForecaster(t, constantPredictor(2), Options{LookbackDays: 30})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 2, StartDate: marchFirst, IncludeConfidence: false,
	})
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	for date, day := range decoded {
		for series, fields := range day {
			assert.NotContains(t, fields, "lower", "%s/%s", date, series)
			assert.NotContains(t, fields, "upper", "%s/%s", date, series)
			assert.NotContains(t, fields, "confidence_interval", "%s/%s", date, series)
			assert.Contains(t, fields, "mean")
			assert.Contains(t, fields, "unit")
		}
	}
}

func TestPredictShortHistoryPads(t *testing.T) {
	lookback := 30
	// History shorter than the lookback by 12 rows
	history := historyOf(t, lookback-12, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 4 },
	})

	f := newTestForecaster(t, constantPredictor(1), Options{LookbackDays: lookback})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 7, StartDate: marchFirst, IncludeConfidence: true,
	})
	require.NoError(t, err)

	assert.Len(t, result.Days, 7)
	assert.True(t, result.Quality.Padded)
	assert.Equal(t, 12, result.Quality.PaddedRows)
}

func TestPredictMissingSeriesTolerated(t *testing.T) {
	history := historyOf(t, 40, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 3 },
	})

	f := newTestForecaster(t, constantPredictor(1), Options{LookbackDays: 30})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 4, StartDate: marchFirst, SeriesNames: []string{"a", "ghost"}, IncludeConfidence: true,
	})
	require.NoError(t, err)

	for _, day := range result.Days {
		assert.Contains(t, day, "a")
		assert.NotContains(t, day, "ghost")
	}
	assert.Equal(t, []string{"ghost"}, result.Quality.DroppedSeries)
	assert.Equal(t, []string{"a"}, result.Quality.HonoredSeries)
	assert.True(t, result.Quality.Degraded())
}

func TestPredictAllSeriesMissing(t *testing.T) {
	history := historyOf(t, 40, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 3 },
	})

	f := newTestForecaster(t, constantPredictor(1), Options{LookbackDays: 30})

	_, err := f.Predict(context.Background(), history, &Request{
		SeriesNames: []string{"ghost", "phantom"}, IncludeConfidence: true,
	})
	assert.Error(t, err)
}

func TestPredictDefaultsToAllSeries(t *testing.T) {
	history := historyOf(t, 40, marchFirst, map[string]func(i int) float64{
		"expenses": func(i int) float64 { return 300 },
		"profit":   func(i int) float64 { return 150 },
		"revenue":  func(i int) float64 { return 450 },
	})

	f := newTestForecaster(t, constantPredictor(1), Options{LookbackDays: 30})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 2, StartDate: marchFirst, IncludeConfidence: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"expenses", "profit", "revenue"}, result.Quality.HonoredSeries)
	for _, day := range result.Days {
		assert.Len(t, day, 3)
	}
}

func TestPredictPropagatesPredictorFailure(t *testing.T) {
	history := historyOf(t, 40, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 3 },
	})

	boom := errors.New("tensor shape mismatch")
	f := newTestForecaster(t, &stubPredictor{err: boom}, Options{LookbackDays: 30})

	_, err := f.Predict(context.Background(), history, DefaultRequest())
	require.Error(t, err)

	var predErr *PredictionError
	require.ErrorAs(t, err, &predErr)
	assert.ErrorIs(t, err, boom)
}

func TestPredictTimeout(t *testing.T) {
	history := historyOf(t, 40, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 3 },
	})

	f := newTestForecaster(t, &stubPredictor{block: true}, Options{
		LookbackDays:      30,
		PredictionTimeout: 20 * time.Millisecond,
	})

	_, err := f.Predict(context.Background(), history, DefaultRequest())
	require.Error(t, err)

	var timeoutErr *PredictionTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.Timeout)
}

func TestPredictAppliesInverseScaling(t *testing.T) {
	history := historyOf(t, 30, marchFirst, map[string]func(i int) float64{
		"flour": func(i int) float64 { return 10 + float64(i) },
	})

	scaler := scaling.NewMinMaxTransform()
	require.NoError(t, scaler.Fit(map[string][]float64{
		"flour": {0, 100},
	}))

	// Predictor emits 0.5 in scaled space; native units are 0..100
	f := newTestForecaster(t, constantPredictor(0.5), Options{
		LookbackDays: 30,
		Scaler:       scaler,
	})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 1, StartDate: marchFirst, IncludeConfidence: false,
	})
	require.NoError(t, err)

	point := result.Days["2025-03-01"]["flour"]
	assert.InDelta(t, 50.0, point.Mean, 1e-9)
}

func TestPredictUsesMetadataUnits(t *testing.T) {
	history := historyOf(t, 30, marchFirst, map[string]func(i int) float64{
		"flour":  func(i int) float64 { return 5 },
		"tomato": func(i int) float64 { return 5 },
	})

	f := newTestForecaster(t, constantPredictor(1), Options{
		LookbackDays: 30,
		Metadata: MetadataTable{
			"flour": {Unit: "kg"},
		},
	})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 1, StartDate: marchFirst, IncludeConfidence: false,
	})
	require.NoError(t, err)

	day := result.Days["2025-03-01"]
	assert.Equal(t, "kg", day["flour"].Unit)
	assert.Equal(t, DefaultUnit, day["tomato"].Unit)
}

func TestPredictClampsToMetadataBounds(t *testing.T) {
	history := historyOf(t, 30, marchFirst, map[string]func(i int) float64{
		"flour":  func(i int) float64 { return 5 },
		"tomato": func(i int) float64 { return 5 },
	})

	max := 100.0
	min := 20.0
	f := newTestForecaster(t, &stubPredictor{value: func(i, j int) float64 { return 150 }}, Options{
		LookbackDays: 30,
		Metadata: MetadataTable{
			"flour":  {Unit: "kg", MaxValue: &max},
			"tomato": {Unit: "kg", MinValue: &min},
		},
	})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 1, StartDate: marchFirst, IncludeConfidence: true,
	})
	require.NoError(t, err)

	day := result.Days["2025-03-01"]

	// 150 exceeds flour's declared ceiling of 100
	flour := day["flour"]
	assert.Equal(t, 100.0, flour.Mean)
	// Confidence bands derive from the clamped mean
	require.NotNil(t, flour.Upper)
	assert.InDelta(t, 110.0, *flour.Upper, 1e-9)

	// 150 sits above tomato's floor, so it passes through
	assert.Equal(t, 150.0, day["tomato"].Mean)

	// A negative raw value clamps to zero first, then up to the floor
	g := newTestForecaster(t, constantPredictor(-3), Options{
		LookbackDays: 30,
		Metadata: MetadataTable{
			"tomato": {Unit: "kg", MinValue: &min},
		},
	})
	result, err = g.Predict(context.Background(), history, &Request{
		HorizonDays: 1, StartDate: marchFirst, IncludeConfidence: false,
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, result.Days["2025-03-01"]["tomato"].Mean)
}

func TestPredictRejectsExcessiveHorizon(t *testing.T) {
	history := historyOf(t, 30, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 5 },
	})

	f := newTestForecaster(t, constantPredictor(1), Options{
		LookbackDays: 30,
		MaxHorizon:   14,
	})

	_, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 30, StartDate: marchFirst,
	})
	assert.Error(t, err)
}

func TestPredictLogsDegradations(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)

	history := historyOf(t, 12, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 3 },
	})

	f := newTestForecaster(t, constantPredictor(1), Options{
		LookbackDays: 30,
		Logger:       logger,
	})

	_, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 2, StartDate: marchFirst, SeriesNames: []string{"a", "ghost"},
	})
	require.NoError(t, err)

	testutil.AssertLogContains(t, handler, slog.LevelWarn, "requested series not found")
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "left-padding with zero rows")
	assert.True(t, handler.ContainsAttr("series", "ghost"))
}

func TestResultJSONShape(t *testing.T) {
	history := historyOf(t, 30, marchFirst, map[string]func(i int) float64{
		"flour": func(i int) float64 { return 5 },
	})

	f := newTestForecaster(t, constantPredictor(2), Options{LookbackDays: 30})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 1, StartDate: marchFirst, IncludeConfidence: true,
	})
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	// Top level is the plain date map; run ID and quality stay in-process
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "2025-03-01")
	assert.NotContains(t, decoded, "RunID")
	assert.NotContains(t, decoded, "quality")

	var day map[string]map[string]any
	require.NoError(t, json.Unmarshal(decoded["2025-03-01"], &day))
	fields := day["flour"]
	assert.Contains(t, fields, "mean")
	assert.Contains(t, fields, "lower")
	assert.Contains(t, fields, "upper")
	assert.Contains(t, fields, "confidence_interval")
	assert.Contains(t, fields, "unit")
}

func TestDateKeysSorted(t *testing.T) {
	history := historyOf(t, 30, marchFirst, map[string]func(i int) float64{
		"a": func(i int) float64 { return 5 },
	})

	f := newTestForecaster(t, constantPredictor(1), Options{LookbackDays: 30})

	result, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 10, StartDate: time.Date(2025, 2, 25, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	keys := result.DateKeys()
	require.Len(t, keys, 10)
	assert.Equal(t, "2025-02-25", keys[0])
	assert.Equal(t, "2025-03-06", keys[9])
}
