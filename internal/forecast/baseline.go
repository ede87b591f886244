package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"forecastcli/internal/calendar"
	"forecastcli/internal/dataset"
)

// BaselinePredictor is the default model behind the Predictor interface:
// per-series exponentially smoothed level plus linear trend, modulated by a
// learned day-of-week profile. It exists so the pipeline is runnable and
// incrementally trainable without an external model artifact; any stronger
// sequence model can replace it behind the same interface.
//
// Prediction is deterministic and read-only, so one instance may serve
// concurrent forecast calls. Fitting happens on trainer-owned clones only.
type BaselinePredictor struct {
	// alpha is the exponential smoothing factor for the window level.
	alpha float64
	// dowFactors is the multiplicative day-of-week profile, Sunday first.
	dowFactors [7]float64
	fitted     bool
}

// NewBaselinePredictor creates a baseline with a flat weekday profile.
func NewBaselinePredictor() *BaselinePredictor {
	p := &BaselinePredictor{alpha: 0.3}
	for i := range p.dowFactors {
		p.dowFactors[i] = 1.0
	}
	return p
}

// Predict produces one row per calendar feature vector. For each series
// column: level via exponential smoothing over the window, trend via least
// squares over the window, then base + trend extrapolation shaped by the
// day-of-week factor decoded from the calendar one-hot block.
func (p *BaselinePredictor) Predict(ctx context.Context, window [][]float64, calendarFeatures [][]float64) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return nil, fmt.Errorf("empty window")
	}

	n := len(window[0])
	horizon := len(calendarFeatures)

	levels := make([]float64, n)
	trends := make([]float64, n)
	for j := 0; j < n; j++ {
		column := make([]float64, len(window))
		for i := range window {
			column[i] = window[i][j]
		}
		levels[j] = smooth(column, p.alpha)
		trends[j] = slope(column)
	}

	out := make([][]float64, horizon)
	for i := 0; i < horizon; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		factor := p.dowFactors[decodeWeekday(calendarFeatures[i])]

		row := make([]float64, n)
		for j := 0; j < n; j++ {
			row[j] = (levels[j] + trends[j]*float64(i+1)) * factor
		}
		out[i] = row
	}

	return out, nil
}

// Fit updates the day-of-week profile from new observations without
// resetting it: each epoch moves the factors a learning-rate-sized step
// toward the profile observed in the data. The returned trace holds the
// training loss per epoch and a validation loss over the trailing quarter
// of the observations.
func (p *BaselinePredictor) Fit(ctx context.Context, observations *dataset.Dataset, opts FitOptions) (*TrainingHistory, error) {
	if observations.Len() == 0 {
		return nil, fmt.Errorf("no observations to fit on")
	}
	if opts.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive: %d", opts.Epochs)
	}

	target, overall := observedProfile(observations)
	if overall == 0 {
		return nil, fmt.Errorf("observations are all zero")
	}

	split := observations.Len() * 3 / 4
	if split == 0 {
		split = observations.Len()
	}

	history := &TrainingHistory{
		Loss:    make([]float64, 0, opts.Epochs),
		ValLoss: make([]float64, 0, opts.Epochs),
		Epochs:  opts.Epochs,
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for dow := 0; dow < 7; dow++ {
			p.dowFactors[dow] += opts.LearningRate * (target[dow] - p.dowFactors[dow])
		}

		history.Loss = append(history.Loss, p.profileLoss(observations, 0, split))
		history.ValLoss = append(history.ValLoss, p.profileLoss(observations, split, observations.Len()))
	}

	p.fitted = true

	return history, nil
}

// Clone returns an independent copy for build-then-publish swaps.
func (p *BaselinePredictor) Clone() TrainablePredictor {
	clone := *p
	return &clone
}

// baselineArtifact is the on-disk form of the learned profile.
type baselineArtifact struct {
	Alpha      float64    `json:"alpha"`
	DowFactors [7]float64 `json:"dow_factors"`
}

// Save persists the learned profile as a JSON artifact so a later process
// can resume from it.
func (p *BaselinePredictor) Save(path string) error {
	if !p.fitted {
		return fmt.Errorf("cannot save unfitted model")
	}

	data, err := json.MarshalIndent(baselineArtifact{
		Alpha:      p.alpha,
		DowFactors: p.dowFactors,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write model artifact: %w", err)
	}

	return nil
}

// LoadBaseline restores a previously saved baseline predictor. The loaded
// model counts as fitted.
func LoadBaseline(path string) (*BaselinePredictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var artifact baselineArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}

	if artifact.Alpha <= 0 || artifact.Alpha > 1 {
		return nil, fmt.Errorf("model artifact has invalid smoothing factor %g", artifact.Alpha)
	}

	return &BaselinePredictor{
		alpha:      artifact.Alpha,
		dowFactors: artifact.DowFactors,
		fitted:     true,
	}, nil
}

// profileLoss is the mean squared error of the profile-shaped per-series
// mean against the actual observations over rows [from, to).
func (p *BaselinePredictor) profileLoss(observations *dataset.Dataset, from, to int) float64 {
	if from >= to {
		return 0
	}

	sum := 0.0
	count := 0

	for _, values := range observations.Columns {
		mean := 0.0
		for _, v := range values[from:to] {
			mean += v
		}
		mean /= float64(to - from)

		for i := from; i < to; i++ {
			dow := int(observations.Dates[i].Weekday())
			predicted := mean * p.dowFactors[dow]
			diff := predicted - values[i]
			sum += diff * diff
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// observedProfile computes the mean value per weekday across all series,
// normalized by the overall mean, producing the target multiplicative
// profile. Returns the profile and the overall mean.
func observedProfile(observations *dataset.Dataset) ([7]float64, float64) {
	var sums [7]float64
	var counts [7]int
	total := 0.0
	n := 0

	for _, values := range observations.Columns {
		for i, v := range values {
			dow := int(observations.Dates[i].Weekday())
			sums[dow] += v
			counts[dow]++
			total += v
			n++
		}
	}

	var profile [7]float64
	overall := 0.0
	if n > 0 {
		overall = total / float64(n)
	}

	for dow := 0; dow < 7; dow++ {
		if counts[dow] == 0 || overall == 0 {
			profile[dow] = 1.0
			continue
		}
		profile[dow] = (sums[dow] / float64(counts[dow])) / overall
	}

	return profile, overall
}

// smooth computes the exponentially smoothed level of a column.
func smooth(column []float64, alpha float64) float64 {
	level := column[0]
	for _, v := range column[1:] {
		level = alpha*v + (1-alpha)*level
	}
	return level
}

// slope fits a least-squares line over the column and returns its slope
// per step. Columns shorter than two rows have no trend.
func slope(column []float64) float64 {
	n := float64(len(column))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range column {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// decodeWeekday reads the day-of-week back out of the one-hot block of a
// calendar feature vector.
func decodeWeekday(features []float64) int {
	limit := calendar.DayOfWeekDim
	if len(features) < limit {
		limit = len(features)
	}
	for i := 0; i < limit; i++ {
		if features[i] == 1 {
			return i
		}
	}
	return 0
}
