// Package report runs forecast jobs as a batch and writes their CSV
// reports. Production use runs the demand and finance pipelines side by
// side over freshly loaded history; the jobs are independent, so they run
// concurrently and a failure in one cancels the rest.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"forecastcli/internal/dataset"
	"forecastcli/internal/exporter"
	"forecastcli/internal/forecast"
	"forecastcli/internal/infrastructure"
)

// Job is one named forecast to run: a constructed forecaster, the history
// to feed it, and the request options.
type Job struct {
	// Name labels the job in logs and output file names, e.g. "demand".
	Name       string
	Forecaster *forecast.Forecaster
	History    *dataset.Dataset
	Request    *forecast.Request
}

// Output is the outcome of one completed job.
type Output struct {
	Name        string
	Result      *forecast.Result
	ReportPath  string
	SummaryPath string
}

// Runner executes jobs and exports their results into the reports
// directory.
type Runner struct {
	exporter *exporter.ForecastExporter
	logger   *slog.Logger

	// now is swappable for tests; file names carry the run date.
	now func() time.Time
}

// NewRunner creates a runner writing reports under reportsDir.
func NewRunner(reportsDir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		exporter: exporter.NewForecastExporter(reportsDir),
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes all jobs concurrently and returns their outputs in job
// order. The first failure cancels the remaining jobs and is returned;
// there are no partial outputs on error.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Output, error) {
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no jobs to run")
	}

	stamp := r.now().Format("20060102")

	outputs := make([]Output, len(jobs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			out, err := r.runJob(ctx, job, stamp)
			if err != nil {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}

			mu.Lock()
			outputs[i] = out
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return outputs, nil
}

func (r *Runner) runJob(ctx context.Context, job Job, stamp string) (Output, error) {
	if job.Name == "" {
		return Output{}, fmt.Errorf("job name is required")
	}
	if job.Forecaster == nil {
		return Output{}, fmt.Errorf("forecaster is required")
	}

	// Every log record of this job shares one trace ID.
	ctx = infrastructure.EnsureTraceID(ctx)

	start := time.Now()

	result, err := job.Forecaster.Predict(ctx, job.History, job.Request)
	if err != nil {
		return Output{}, err
	}

	reportPath := fmt.Sprintf("forecast_%s_%s.csv", job.Name, stamp)
	if err := r.exporter.ExportResult(result, reportPath); err != nil {
		return Output{}, fmt.Errorf("export report: %w", err)
	}

	summaryPath := fmt.Sprintf("summary_%s_%s.csv", job.Name, stamp)
	if err := r.exporter.ExportSummary(result, summaryPath); err != nil {
		return Output{}, fmt.Errorf("export summary: %w", err)
	}

	r.logger.InfoContext(ctx, "forecast report generated",
		"job", job.Name,
		"days", len(result.Days),
		"report", reportPath,
		"summary", summaryPath,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Output{
		Name:        job.Name,
		Result:      result,
		ReportPath:  reportPath,
		SummaryPath: summaryPath,
	}, nil
}
