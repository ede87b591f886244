package forecast

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for hard preconditions. Both are checked before any
// numeric work begins; neither has a fallback in production paths.
var (
	// ErrNotReady is returned when no predictor is attached.
	ErrNotReady = errors.New("no predictor attached")

	// ErrMissingData is returned when required historical data is absent.
	ErrMissingData = errors.New("historical data is required")

	// ErrTrainingThrottled is returned when an incremental update is
	// requested faster than the configured minimum interval.
	ErrTrainingThrottled = errors.New("training update throttled")
)

// PredictionError wraps a failure raised by the predictor during inference.
// The underlying error propagates unchanged: the pipeline performs no
// retries and returns no partial results.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("predictor failed: %v", e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// PredictionTimeoutError is returned when the predictor invocation exceeds
// the configured deadline.
type PredictionTimeoutError struct {
	Timeout time.Duration
}

func (e *PredictionTimeoutError) Error() string {
	return fmt.Sprintf("prediction timed out after %s", e.Timeout)
}
