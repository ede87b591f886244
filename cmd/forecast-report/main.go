package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"forecastcli/internal/config"
	"forecastcli/internal/dataset"
	"forecastcli/internal/exporter"
	"forecastcli/internal/forecast"
	"forecastcli/internal/infrastructure"
	"forecastcli/internal/report"
)

func main() {
	dataDir := flag.String("data", "", "directory of historical CSV files (defaults to configured data dir)")
	workbook := flag.String("workbook", "", "Excel workbook with historical data (overrides -data)")
	sheet := flag.String("sheet", "", "workbook sheet name (auto-detected when empty)")
	outputDir := flag.String("out", "", "output directory for reports (defaults to configured reports dir)")
	horizon := flag.Int("horizon", 0, "forecast horizon in days (defaults to configured)")
	startStr := flag.String("start", "", "first forecast date as YYYY-MM-DD (defaults to today)")
	seriesList := flag.String("series", "", "comma-separated series to forecast (defaults to all)")
	pipelineName := flag.String("pipeline", "demand", "pipeline to run: demand, finance, or both")
	noConfidence := flag.Bool("no-confidence", false, "omit confidence bands")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		slog.Error("Failed to create data directories", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	defer infrastructure.CloseLogFile()

	// Observability: metrics are wired even for one-shot runs; traces stay off
	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.TraceExporter = "none"
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()
	defer providers.Shutdown(ctx)

	var metrics *infrastructure.PipelineMetrics
	if providers.Meter != nil {
		metrics, err = infrastructure.CreatePipelineMetrics(providers.Meter)
		if err != nil {
			slog.Error("Failed to create pipeline metrics", "error", err)
			os.Exit(1)
		}
	}

	// Parse the forecast start date
	var startDate time.Time
	if *startStr != "" {
		startDate, err = time.Parse("2006-01-02", *startStr)
		if err != nil {
			slog.Error("Invalid start date", "start", *startStr, "error", err)
			os.Exit(1)
		}
	}

	// Load historical data
	history, err := loadHistory(ctx, cfg, *dataDir, *workbook, *sheet)
	if err != nil {
		slog.Error("Failed to load historical data", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded historical data",
		"rows", history.Len(),
		"series", len(history.SeriesNames()))

	// Build the requested pipelines
	variants, err := selectVariants(*pipelineName)
	if err != nil {
		slog.Error("Invalid pipeline selection", "pipeline", *pipelineName, "error", err)
		os.Exit(1)
	}

	request := &forecast.Request{
		HorizonDays:       *horizon,
		StartDate:         startDate,
		IncludeConfidence: !*noConfidence,
	}
	if *seriesList != "" {
		request.SeriesNames = splitSeries(*seriesList)
	}

	jobs := make([]report.Job, 0, len(variants))
	for _, variant := range variants {
		pipeline, err := buildPipeline(ctx, cfg, variant, logger, metrics)
		if err != nil {
			slog.Error("Failed to build pipeline", "pipeline", variant, "error", err)
			os.Exit(1)
		}
		jobs = append(jobs, report.Job{
			Name:       variant,
			Forecaster: pipeline.Forecaster,
			History:    history,
			Request:    request,
		})
	}

	// Run and export
	reportsDir := *outputDir
	if reportsDir == "" {
		reportsDir = cfg.Paths.ReportsDir
	}

	runner := report.NewRunner(reportsDir, logger)
	outputs, err := runner.Run(ctx, jobs)
	if err != nil {
		slog.Error("Forecast run failed", "error", err)
		os.Exit(1)
	}

	for _, out := range outputs {
		slog.Info("Forecast report generated",
			"pipeline", out.Name,
			"report", out.ReportPath,
			"summary", out.SummaryPath,
			"days", len(out.Result.Days))

		printSummary(out)
	}
}

func loadHistory(ctx context.Context, cfg *config.Config, dataDir, workbook, sheet string) (*dataset.Dataset, error) {
	if workbook != "" {
		return dataset.LoadWorkbook(workbook, sheet)
	}

	dir := dataDir
	if dir == "" {
		dir = cfg.Paths.DataDir
	}
	return dataset.LoadCSVDir(ctx, dir)
}

func selectVariants(name string) ([]string, error) {
	switch name {
	case "demand":
		return []string{"demand"}, nil
	case "finance":
		return []string{"finance"}, nil
	case "both":
		return []string{"demand", "finance"}, nil
	default:
		return nil, fmt.Errorf("unknown pipeline %q, expected demand, finance or both", name)
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config, variant string, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) (*forecast.Pipeline, error) {
	// A nil predictor resumes from the saved model artifact when present
	if variant == "finance" {
		return forecast.NewFinancePipeline(ctx, cfg, nil, logger, metrics)
	}
	return forecast.NewDemandPipeline(ctx, cfg, nil, logger, metrics)
}

func splitSeries(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func printSummary(out report.Output) {
	summaries := exporter.Summarize(out.Result)
	if len(summaries) == 0 {
		return
	}

	fmt.Printf("\n=== %s FORECAST SUMMARY ===\n", strings.ToUpper(out.Name))
	fmt.Println("Series | Days | Mean Avg | Min | Max | Unit")
	fmt.Println("-------|------|----------|-----|-----|-----")
	for _, s := range summaries {
		fmt.Printf("%-16s | %4d | %8.2f | %7.2f | %7.2f | %s\n",
			s.Series, s.Days, s.MeanAvg, s.Min, s.Max, s.Unit)
	}
}
