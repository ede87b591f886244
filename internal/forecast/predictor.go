package forecast

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"forecastcli/internal/dataset"
)

// Predictor is the opaque sequence-prediction capability the pipeline is
// built around. window is the scaled [lookback][series] history matrix,
// calendarFeatures the [horizon][calendar.FeatureDim] context matrix; the
// return value is a [horizon][series] matrix in the window's units. Any
// regression or sequence model can sit behind this interface; only the
// contract is load-bearing.
type Predictor interface {
	Predict(ctx context.Context, window [][]float64, calendarFeatures [][]float64) ([][]float64, error)
}

// FitOptions bounds one incremental training pass.
type FitOptions struct {
	Epochs       int     `validate:"min=1,max=1000"`
	BatchSize    int     `validate:"min=1"`
	LearningRate float64 `validate:"gt=0,lte=1"`
}

// TrainingHistory is the per-epoch loss trace returned by an incremental
// update, kept for observability.
type TrainingHistory struct {
	JobID    string        `json:"job_id"`
	Loss     []float64     `json:"loss"`
	ValLoss  []float64     `json:"val_loss"`
	Epochs   int           `json:"epochs"`
	Duration time.Duration `json:"duration"`
}

// TrainablePredictor extends Predictor with incremental fitting. Fit
// updates parameters from new observations without discarding existing
// state; Clone returns an independent copy so the trainer can build a new
// model off to the side and publish it atomically.
type TrainablePredictor interface {
	Predictor

	Fit(ctx context.Context, observations *dataset.Dataset, opts FitOptions) (*TrainingHistory, error)
	Clone() TrainablePredictor
}

// ModelHandle is the shared, atomically swappable reference to the active
// predictor. The forecaster reads through it on every call; the trainer is
// the only writer and publishes full replacements, never in-place edits, so
// no forecast observes a partially updated model.
type ModelHandle struct {
	ptr atomic.Pointer[Predictor]
}

// NewModelHandle creates a handle. p may be nil; forecasts through an empty
// handle fail with ErrNotReady until a model is published.
func NewModelHandle(p Predictor) *ModelHandle {
	h := &ModelHandle{}
	if p != nil {
		h.ptr.Store(&p)
	}
	return h
}

// Active returns the currently published predictor, or nil.
func (h *ModelHandle) Active() Predictor {
	p := h.ptr.Load()
	if p == nil {
		return nil
	}
	return *p
}

// publish atomically swaps in a fully built replacement model.
func (h *ModelHandle) publish(p Predictor) {
	h.ptr.Store(&p)
}

// predictWithDeadline invokes the predictor under an optional deadline.
// Deadline expiry surfaces as PredictionTimeoutError; other predictor
// failures are wrapped in PredictionError and otherwise left intact.
func predictWithDeadline(ctx context.Context, p Predictor, window, calendarFeatures [][]float64, timeout time.Duration) ([][]float64, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := p.Predict(ctx, window, calendarFeatures)
	if err != nil {
		if timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			return nil, &PredictionTimeoutError{Timeout: timeout}
		}
		return nil, &PredictionError{Err: err}
	}

	return raw, nil
}
