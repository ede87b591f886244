package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LoadCSVFile loads a wide-format CSV file into a dataset.
// Expected format: a header row starting with a date column followed by one
// column per series, then one row per day:
//
//	date,flour,tomato
//	2025-01-01,12.5,30
//	2025-01-02,11.0,28
func LoadCSVFile(csvPath string) (*Dataset, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV records: %w", err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file %s has no data rows", filepath.Base(csvPath))
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("CSV header needs a date column and at least one series")
	}

	names := make([]string, len(header)-1)
	for i, h := range header[1:] {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, fmt.Errorf("empty series name in column %d", i+2)
		}
		names[i] = name
	}

	ds := New()
	for _, name := range names {
		ds.Columns[name] = nil
	}

	for i, record := range records[1:] {
		lineNum := i + 2

		if len(record) != len(header) {
			slog.Warn("skipping malformed CSV row",
				"file", filepath.Base(csvPath),
				"line", lineNum,
				"columns", len(record),
			)
			continue
		}

		date, err := parseDate(strings.TrimSpace(record[0]))
		if err != nil {
			slog.Warn("skipping CSV row with unparseable date",
				"file", filepath.Base(csvPath),
				"line", lineNum,
				"error", err,
			)
			continue
		}

		ds.Dates = append(ds.Dates, date)
		for j, name := range names {
			value, err := strconv.ParseFloat(strings.TrimSpace(record[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s (line %d): %w", name, lineNum, err)
			}
			ds.Columns[name] = append(ds.Columns[name], value)
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset in %s: %w", filepath.Base(csvPath), err)
	}

	return ds, nil
}

// LoadCSVDir loads every CSV file under dir and merges them on the date
// axis. Files covering the same series extend each other; problematic files
// are logged and skipped rather than failing the whole load.
func LoadCSVDir(ctx context.Context, dir string) (*Dataset, error) {
	logger := slog.Default()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("CSV directory does not exist: %s", dir)
	}

	csvFiles, err := findCSVFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("find CSV files: %w", err)
	}

	if len(csvFiles) == 0 {
		return nil, fmt.Errorf("no CSV files found in directory: %s", dir)
	}

	logger.InfoContext(ctx, "loading historical data",
		"dir", dir,
		"files", len(csvFiles),
	)

	// Collect observations keyed by date, then rebuild the axis sorted
	type cell struct {
		series string
		value  float64
	}
	observed := make(map[time.Time][]cell)
	seriesSet := make(map[string]bool)

	for _, csvFile := range csvFiles {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during data loading: %w", ctx.Err())
		default:
		}

		part, err := LoadCSVFile(csvFile)
		if err != nil {
			logger.WarnContext(ctx, "failed to load CSV file",
				"file", csvFile,
				"error", err,
			)
			continue
		}

		for name, values := range part.Columns {
			seriesSet[name] = true
			for i, date := range part.Dates {
				observed[date] = append(observed[date], cell{series: name, value: values[i]})
			}
		}
	}

	if len(observed) == 0 {
		return nil, fmt.Errorf("no valid data loaded from %s", dir)
	}

	dates := make([]time.Time, 0, len(observed))
	for date := range observed {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	ds := New()
	ds.Dates = dates
	for name := range seriesSet {
		ds.Columns[name] = make([]float64, len(dates))
	}
	for i, date := range dates {
		for _, c := range observed[date] {
			ds.Columns[c.series][i] = c.value
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("merged dataset invalid: %w", err)
	}

	logger.InfoContext(ctx, "historical data loaded",
		"rows", ds.Len(),
		"series", len(ds.Columns),
	)

	return ds, nil
}

// findCSVFiles finds all CSV files in the specified directory
func findCSVFiles(dir string) ([]string, error) {
	var csvFiles []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ".csv") {
			csvFiles = append(csvFiles, path)
		}

		return nil
	})

	return csvFiles, err
}
