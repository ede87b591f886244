package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"forecastcli/internal/config"
	"forecastcli/internal/infrastructure"
	"forecastcli/internal/scaling"
)

// The pipeline runs twice in production paths: once over stock/ingredient
// demand (kg, units per day) and once over financial metrics (revenue,
// expenses, profit per day). Both share the same orchestrator; they differ
// only in their artifact directory, metadata side-table and logging
// component. Each preset is built once at process startup and passed by
// reference to its callers.

// Pipeline bundles one constructed forecaster with its trainer; both share
// the same model handle.
type Pipeline struct {
	Forecaster *Forecaster
	Trainer    *Trainer
	Handle     *ModelHandle
}

// NewDemandPipeline builds the stock-demand forecaster, loading its scaling
// artifact and series metadata from <models>/demand/. A nil predictor
// restores the last trained baseline from the same directory, or starts an
// untrained one.
func NewDemandPipeline(ctx context.Context, cfg *config.Config, predictor Predictor, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) (*Pipeline, error) {
	return newPipeline(ctx, cfg, predictor, logger, metrics, "demand")
}

// NewFinancePipeline builds the financial-metrics forecaster, loading its
// scaling artifact and series metadata from <models>/finance/.
func NewFinancePipeline(ctx context.Context, cfg *config.Config, predictor Predictor, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) (*Pipeline, error) {
	return newPipeline(ctx, cfg, predictor, logger, metrics, "finance")
}

func newPipeline(ctx context.Context, cfg *config.Config, predictor Predictor, logger *slog.Logger, metrics *infrastructure.PipelineMetrics, variant string) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, variant+"-forecaster")

	// Scaling artifact: absence is tolerated and triggers the fallback
	// window-max normalization.
	var scaler *scaling.MinMaxTransform
	scalerPath := cfg.GetScalerPath(variant)
	if _, err := os.Stat(scalerPath); err == nil {
		scaler, err = scaling.Load(scalerPath)
		if err != nil {
			return nil, fmt.Errorf("load scaling artifact: %w", err)
		}
		logger.InfoContext(ctx, "scaling artifact loaded",
			"path", scalerPath,
			"series", len(scaler.Stats),
		)
	} else {
		logger.WarnContext(ctx, "no scaling artifact, using fallback window-max normalization",
			"path", scalerPath,
		)
	}

	// Metadata sidecar: absence means every series reports the generic
	// placeholder unit.
	metadata := MetadataTable{}
	metadataPath := cfg.GetMetadataPath(variant)
	if _, err := os.Stat(metadataPath); err == nil {
		metadata, err = LoadMetadata(metadataPath)
		if err != nil {
			return nil, fmt.Errorf("load series metadata: %w", err)
		}
		logger.InfoContext(ctx, "series metadata loaded",
			"path", metadataPath,
			"series", len(metadata),
		)
	} else {
		logger.WarnContext(ctx, "no series metadata sidecar, units default to placeholder",
			"path", metadataPath,
		)
	}

	// Model artifact: callers may inject a predictor; otherwise the last
	// trained baseline is restored from disk.
	if predictor == nil {
		modelPath := cfg.GetModelPath(variant)
		if _, err := os.Stat(modelPath); err == nil {
			baseline, err := LoadBaseline(modelPath)
			if err != nil {
				return nil, fmt.Errorf("load model artifact: %w", err)
			}
			logger.InfoContext(ctx, "model artifact loaded", "path", modelPath)
			predictor = baseline
		} else {
			logger.WarnContext(ctx, "no model artifact, starting from an untrained baseline",
				"path", modelPath,
			)
			predictor = NewBaselinePredictor()
		}
	}

	handle := NewModelHandle(predictor)

	forecaster, err := New(handle, Options{
		LookbackDays:      cfg.Forecast.LookbackDays,
		DefaultHorizon:    cfg.Forecast.DefaultHorizon,
		MaxHorizon:        cfg.Forecast.MaxHorizon,
		PredictionTimeout: cfg.Forecast.PredictionTimeout,
		Scaler:            scaler,
		Metadata:          metadata,
		Logger:            logger,
		Metrics:           metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s forecaster: %w", variant, err)
	}

	trainer, err := NewTrainer(handle, cfg.Training, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("build %s trainer: %w", variant, err)
	}

	return &Pipeline{
		Forecaster: forecaster,
		Trainer:    trainer,
		Handle:     handle,
	}, nil
}
