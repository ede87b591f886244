package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"forecastcli/internal/config"
	"forecastcli/internal/dataset"
	"forecastcli/internal/forecast"
	"forecastcli/internal/infrastructure"
)

func main() {
	dataDir := flag.String("data", "", "directory of observation CSV files (defaults to configured data dir)")
	workbook := flag.String("workbook", "", "Excel workbook with observations (overrides -data)")
	sheet := flag.String("sheet", "", "workbook sheet name (auto-detected when empty)")
	pipelineName := flag.String("pipeline", "demand", "pipeline to train: demand or finance")
	epochs := flag.Int("epochs", 0, "training epochs (defaults to configured)")
	batchSize := flag.Int("batch", 0, "batch size (defaults to configured)")
	learningRate := flag.Float64("lr", 0, "learning rate (defaults to configured)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		slog.Error("Failed to create data directories", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	defer infrastructure.CloseLogFile()

	ctx := context.Background()

	// Load new observations
	observations, err := loadObservations(ctx, cfg, *dataDir, *workbook, *sheet)
	if err != nil {
		slog.Error("Failed to load observations", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded observations",
		"rows", observations.Len(),
		"series", len(observations.SeriesNames()))

	// Build the pipeline for the requested variant
	pipeline, err := buildPipeline(ctx, cfg, *pipelineName, logger)
	if err != nil {
		slog.Error("Failed to build pipeline", "pipeline", *pipelineName, "error", err)
		os.Exit(1)
	}

	// Run one incremental update
	history, err := pipeline.Trainer.Update(ctx, observations, forecast.FitOptions{
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *learningRate,
	})
	if err != nil {
		if errors.Is(err, forecast.ErrTrainingThrottled) {
			slog.Error("Training rejected: updates are rate limited",
				"min_interval", cfg.Training.MinInterval)
		} else {
			slog.Error("Training failed", "error", err)
		}
		os.Exit(1)
	}

	slog.Info("Incremental training complete",
		"job_id", history.JobID,
		"epochs", history.Epochs,
		"duration_ms", history.Duration.Milliseconds())

	// Persist the freshly published model so later runs resume from it
	if trained, ok := pipeline.Handle.Active().(*forecast.BaselinePredictor); ok {
		modelPath := cfg.GetModelPath(*pipelineName)
		if err := trained.Save(modelPath); err != nil {
			slog.Error("Failed to save model artifact", "path", modelPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Model artifact saved", "path", modelPath)
	}

	printLossTrace(history)
}

func loadObservations(ctx context.Context, cfg *config.Config, dataDir, workbook, sheet string) (*dataset.Dataset, error) {
	if workbook != "" {
		return dataset.LoadWorkbook(workbook, sheet)
	}

	dir := dataDir
	if dir == "" {
		dir = cfg.Paths.DataDir
	}
	return dataset.LoadCSVDir(ctx, dir)
}

func buildPipeline(ctx context.Context, cfg *config.Config, variant string, logger *slog.Logger) (*forecast.Pipeline, error) {
	// A nil predictor resumes from the saved model artifact when present
	switch variant {
	case "demand":
		return forecast.NewDemandPipeline(ctx, cfg, nil, logger, nil)
	case "finance":
		return forecast.NewFinancePipeline(ctx, cfg, nil, logger, nil)
	default:
		return nil, fmt.Errorf("unknown pipeline %q, expected demand or finance", variant)
	}
}

func printLossTrace(history *forecast.TrainingHistory) {
	fmt.Println("\n=== TRAINING LOSS ===")
	fmt.Println("Epoch | Loss | Val Loss")
	fmt.Println("------|------|---------")
	for i := range history.Loss {
		valLoss := "-"
		if i < len(history.ValLoss) {
			valLoss = fmt.Sprintf("%.6f", history.ValLoss[i])
		}
		fmt.Printf("%5d | %.6f | %s\n", i+1, history.Loss[i], valLoss)
	}
}
