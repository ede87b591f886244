// Package scaling provides fitted normalization transforms for model inputs
// and outputs. A transform is fit once on training data, persisted as a JSON
// artifact next to the model, and loaded read-only at forecaster
// construction. Inference never mutates a fitted transform.
package scaling

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// SeriesStats holds the fitted statistics for one series.
type SeriesStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MinMaxTransform scales each series into [0, 1] using per-series min/max
// statistics. Once fit, the transform is consistently invertible:
// Inverse(Transform(x)) ≈ x for every series it was fit on.
type MinMaxTransform struct {
	Stats  map[string]SeriesStats `json:"stats"`
	Fitted bool                   `json:"fitted"`
}

// NewMinMaxTransform creates an unfitted transform.
func NewMinMaxTransform() *MinMaxTransform {
	return &MinMaxTransform{
		Stats: make(map[string]SeriesStats),
	}
}

// Fit computes per-series min/max statistics from training columns.
// Non-finite values are skipped. Fitting replaces any previous statistics.
func (t *MinMaxTransform) Fit(columns map[string][]float64) error {
	if len(columns) == 0 {
		return fmt.Errorf("no series provided for fitting")
	}

	stats := make(map[string]SeriesStats, len(columns))

	for name, values := range columns {
		min := math.Inf(1)
		max := math.Inf(-1)
		valid := 0

		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			valid++
		}

		if valid == 0 {
			return fmt.Errorf("series %q has no valid values", name)
		}

		stats[name] = SeriesStats{Min: min, Max: max}
	}

	t.Stats = stats
	t.Fitted = true

	return nil
}

// Transform scales a single value for the named series into [0, 1].
// Series the transform was not fit on, and degenerate series where
// max == min, pass through unscaled.
func (t *MinMaxTransform) Transform(series string, value float64) float64 {
	s, ok := t.Stats[series]
	if !ok || s.Max == s.Min {
		return value
	}
	return (value - s.Min) / (s.Max - s.Min)
}

// Inverse maps a scaled value back to the series' native units.
func (t *MinMaxTransform) Inverse(series string, scaled float64) float64 {
	s, ok := t.Stats[series]
	if !ok || s.Max == s.Min {
		return scaled
	}
	return scaled*(s.Max-s.Min) + s.Min
}

// TransformColumn returns a scaled copy of a column.
func (t *MinMaxTransform) TransformColumn(series string, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = t.Transform(series, v)
	}
	return out
}

// InverseColumn maps a whole scaled column back to native units.
func (t *MinMaxTransform) InverseColumn(series string, scaled []float64) []float64 {
	out := make([]float64, len(scaled))
	for i, v := range scaled {
		out[i] = t.Inverse(series, v)
	}
	return out
}

// Has reports whether the transform carries statistics for the named series.
func (t *MinMaxTransform) Has(series string) bool {
	_, ok := t.Stats[series]
	return ok
}

// Save persists the fitted transform as a JSON artifact.
func (t *MinMaxTransform) Save(path string) error {
	if !t.Fitted {
		return fmt.Errorf("cannot save unfitted transform")
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transform: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write transform artifact: %w", err)
	}

	return nil
}

// Load reads a previously persisted transform artifact.
func Load(path string) (*MinMaxTransform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transform artifact: %w", err)
	}

	var t MinMaxTransform
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse transform artifact: %w", err)
	}

	if t.Stats == nil {
		t.Stats = make(map[string]SeriesStats)
	}

	return &t, nil
}
