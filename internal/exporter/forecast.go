package exporter

import (
	"fmt"
	"math"
	"sort"

	"forecastcli/internal/forecast"
)

// ForecastExporter flattens forecast results into CSV reports
type ForecastExporter struct {
	csvWriter *CSVWriter
}

// NewForecastExporter creates a forecast report exporter rooted at the
// reports directory
func NewForecastExporter(reportsDir string) *ForecastExporter {
	return &ForecastExporter{
		csvWriter: NewCSVWriter(reportsDir),
	}
}

// ExportResult writes one row per date and series:
// Date, Series, Mean, Lower, Upper, ConfidenceInterval, Unit
func (e *ForecastExporter) ExportResult(result *forecast.Result, filePath string) error {
	if result == nil || len(result.Days) == 0 {
		return fmt.Errorf("no forecast data to export")
	}

	headers := []string{"Date", "Series", "Mean", "Lower", "Upper", "ConfidenceInterval", "Unit"}

	var records [][]string
	for _, date := range result.DateKeys() {
		day := result.Days[date]

		names := make([]string, 0, len(day))
		for name := range day {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			point := day[name]
			records = append(records, []string{
				date,
				name,
				formatFloat(point.Mean),
				formatOptional(point.Lower),
				formatOptional(point.Upper),
				formatOptional(point.ConfidenceInterval),
				point.Unit,
			})
		}
	}

	return e.csvWriter.WriteSimpleCSV(filePath, headers, records)
}

// SeriesSummary represents aggregate statistics for one forecast series
type SeriesSummary struct {
	Series  string
	Days    int
	MeanAvg float64
	Min     float64
	Max     float64
	Unit    string
}

// Summarize computes per-series aggregates over the forecast horizon
func Summarize(result *forecast.Result) []SeriesSummary {
	type acc struct {
		sum  float64
		min  float64
		max  float64
		days int
		unit string
	}

	byName := make(map[string]*acc)
	for _, day := range result.Days {
		for name, point := range day {
			a, ok := byName[name]
			if !ok {
				a = &acc{min: math.Inf(1), max: math.Inf(-1), unit: point.Unit}
				byName[name] = a
			}
			a.sum += point.Mean
			a.min = math.Min(a.min, point.Mean)
			a.max = math.Max(a.max, point.Mean)
			a.days++
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	summaries := make([]SeriesSummary, 0, len(names))
	for _, name := range names {
		a := byName[name]
		summaries = append(summaries, SeriesSummary{
			Series:  name,
			Days:    a.days,
			MeanAvg: a.sum / float64(a.days),
			Min:     a.min,
			Max:     a.max,
			Unit:    a.unit,
		})
	}

	return summaries
}

// ExportSummary writes the per-series aggregate view of a forecast
func (e *ForecastExporter) ExportSummary(result *forecast.Result, filePath string) error {
	if result == nil || len(result.Days) == 0 {
		return fmt.Errorf("no forecast data to export")
	}

	headers := []string{"Series", "Days", "MeanAvg", "Min", "Max", "Unit"}

	summaries := Summarize(result)
	records := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		records = append(records, []string{
			s.Series,
			formatInt(int64(s.Days)),
			formatFloat(s.MeanAvg),
			formatFloat(s.Min),
			formatFloat(s.Max),
			s.Unit,
		})
	}

	return e.csvWriter.WriteSimpleCSV(filePath, headers, records)
}
