package dataset

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadWorkbook reads a wide-format sheet from an Excel workbook into a
// dataset. The sheet layout matches the CSV layout: a header row with a date
// column followed by series names, one row per day. When sheetName is empty
// the first sheet that looks like a data sheet is used.
func LoadWorkbook(filePath, sheetName string) (*Dataset, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, sheet, err := findDataSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	slog.Info("Found historical data sheet",
		slog.String("sheet_name", sheet),
		slog.Int("total_rows", len(rows)))

	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q has no data rows", sheet)
	}

	header := rows[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("sheet %q header needs a date column and at least one series", sheet)
	}

	names := make([]string, 0, len(header)-1)
	for _, h := range header[1:] {
		name := strings.TrimSpace(h)
		if name == "" {
			break // trailing empty columns end the series list
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("sheet %q has no series columns", sheet)
	}

	ds := New()
	for _, name := range names {
		ds.Columns[name] = nil
	}

	for i, row := range rows[1:] {
		rowNum := i + 2

		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue // blank row
		}

		date, err := parseDate(strings.TrimSpace(row[0]))
		if err != nil {
			slog.Warn("skipping workbook row with unparseable date",
				slog.String("sheet", sheet),
				slog.Int("row", rowNum),
				slog.Any("error", err))
			continue
		}

		ds.Dates = append(ds.Dates, date)
		for j, name := range names {
			var value float64
			if j+1 < len(row) {
				cell := strings.TrimSpace(row[j+1])
				if cell != "" {
					value, err = strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
					if err != nil {
						return nil, fmt.Errorf("parse %s (row %d): %w", name, rowNum, err)
					}
				}
			}
			ds.Columns[name] = append(ds.Columns[name], value)
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset in sheet %q: %w", sheet, err)
	}

	return ds, nil
}

// findDataSheet locates the sheet holding historical data. A named sheet is
// used directly; otherwise the first sheet whose header row starts with a
// date-like column wins.
func findDataSheet(f *excelize.File, sheetName string) ([][]string, string, error) {
	if sheetName != "" {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, "", fmt.Errorf("read sheet %q: %w", sheetName, err)
		}
		return rows, sheetName, nil
	}

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) < 2 {
			continue
		}

		header := rows[0]
		if len(header) < 2 {
			continue
		}

		first := strings.ToLower(strings.TrimSpace(header[0]))
		if strings.Contains(first, "date") || strings.Contains(first, "day") {
			return rows, name, nil
		}
	}

	return nil, "", fmt.Errorf("could not find historical data sheet in workbook")
}
