package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, f.DeleteSheet("Sheet1"))
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "history.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadWorkbook(t *testing.T) {
	path := writeWorkbook(t, "History", [][]interface{}{
		{"date", "flour", "tomato"},
		{"2025-01-01", 12.5, 30},
		{"2025-01-02", 11, 28.25},
		{"2025-01-03", 14, 31},
	})

	ds, err := LoadWorkbook(path, "History")
	require.NoError(t, err)

	require.Equal(t, 3, ds.Len())
	assert.Equal(t, []string{"flour", "tomato"}, ds.SeriesNames())

	flour, ok := ds.Column("flour")
	require.True(t, ok)
	assert.Equal(t, []float64{12.5, 11, 14}, flour)

	tomato, ok := ds.Column("tomato")
	require.True(t, ok)
	assert.Equal(t, []float64{30, 28.25, 31}, tomato)
}

func TestLoadWorkbookAutoDetectsSheet(t *testing.T) {
	path := writeWorkbook(t, "Daily Sales", [][]interface{}{
		{"Date", "revenue"},
		{"2025-02-01", 1000},
		{"2025-02-02", 1150},
	})

	ds, err := LoadWorkbook(path, "")
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"revenue"}, ds.SeriesNames())
}

func TestLoadWorkbookSkipsBadRows(t *testing.T) {
	path := writeWorkbook(t, "History", [][]interface{}{
		{"date", "flour"},
		{"2025-01-01", 10},
		{"not a date", 99},
		{"", ""},
		{"2025-01-02", 12},
	})

	ds, err := LoadWorkbook(path, "History")
	require.NoError(t, err)

	require.Equal(t, 2, ds.Len())
	flour, _ := ds.Column("flour")
	assert.Equal(t, []float64{10, 12}, flour)
}

func TestLoadWorkbookMissingFile(t *testing.T) {
	_, err := LoadWorkbook(filepath.Join(t.TempDir(), "absent.xlsx"), "")
	assert.Error(t, err)
}

func TestLoadWorkbookEmptySheet(t *testing.T) {
	path := writeWorkbook(t, "History", [][]interface{}{
		{"date", "flour"},
	})

	_, err := LoadWorkbook(path, "History")
	assert.Error(t, err)
}
