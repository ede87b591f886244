package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"forecastcli/internal/config"
	"forecastcli/internal/dataset"
	"forecastcli/internal/infrastructure"
)

// Trainer applies incremental model updates. It is the only writer to the
// shared model handle: each update clones the active model, fits the clone
// on the new observations, then publishes the clone in one atomic swap.
// Concurrent forecast calls keep reading the previous model until the swap
// lands, never a half-updated one.
type Trainer struct {
	handle  *ModelHandle
	limiter *rate.Limiter
	cfg     config.TrainingConfig
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewTrainer creates a trainer sharing the forecaster's model handle.
// Updates arriving faster than cfg.MinInterval are rejected with
// ErrTrainingThrottled rather than queued.
func NewTrainer(handle *ModelHandle, cfg config.TrainingConfig, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) (*Trainer, error) {
	if handle == nil {
		return nil, fmt.Errorf("model handle is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}

	return &Trainer{
		handle:  handle,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Update performs a bounded incremental fit over the new observations and
// returns the per-epoch loss trace. Zero-valued options fall back to the
// configured training defaults.
func (t *Trainer) Update(ctx context.Context, observations *dataset.Dataset, opts FitOptions) (*TrainingHistory, error) {
	start := time.Now()
	jobID := uuid.New().String()
	logger := t.logger.With("job_id", jobID)

	active := t.handle.Active()
	if active == nil {
		return nil, ErrNotReady
	}
	if observations == nil {
		return nil, ErrMissingData
	}
	if err := observations.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observations: %w", err)
	}

	trainable, ok := active.(TrainablePredictor)
	if !ok {
		return nil, fmt.Errorf("active predictor %T does not support incremental updates", active)
	}

	if t.limiter != nil && !t.limiter.Allow() {
		return nil, ErrTrainingThrottled
	}

	if opts.Epochs <= 0 {
		opts.Epochs = t.cfg.Epochs
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = t.cfg.BatchSize
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = t.cfg.LearningRate
	}

	logger.InfoContext(ctx, "starting incremental training",
		"rows", observations.Len(),
		"series", len(observations.Columns),
		"epochs", opts.Epochs,
		"batch_size", opts.BatchSize,
		"learning_rate", opts.LearningRate,
	)

	// Build the replacement off to the side; the active model keeps
	// serving forecasts until the swap below.
	next := trainable.Clone()
	history, err := next.Fit(ctx, observations, opts)
	if err != nil {
		return nil, fmt.Errorf("incremental fit: %w", err)
	}

	t.handle.publish(next)

	history.JobID = jobID
	history.Duration = time.Since(start)

	if t.metrics != nil {
		t.metrics.TrainingRunsTotal.Add(ctx, 1)
		t.metrics.TrainingEpochsTotal.Add(ctx, int64(history.Epochs))
		t.metrics.TrainingDuration.Record(ctx, history.Duration.Seconds())
		t.metrics.ModelSwapsTotal.Add(ctx, 1)
	}

	finalLoss := 0.0
	if len(history.Loss) > 0 {
		finalLoss = history.Loss[len(history.Loss)-1]
	}
	logger.InfoContext(ctx, "incremental training complete",
		"epochs", history.Epochs,
		"final_loss", finalLoss,
		"duration_ms", history.Duration.Milliseconds(),
	)

	return history, nil
}
