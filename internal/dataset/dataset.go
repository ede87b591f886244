// Package dataset defines the in-memory historical series table consumed by
// the forecasting pipeline, plus loaders for the CSV and Excel inputs the
// CLI works with. The pipeline itself only ever sees the in-memory form;
// decoding wire formats is the caller's job.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Dataset is a set of named numeric series aligned on a common date axis.
// Invariants, checked by Validate: at least one row, dates strictly
// increasing, every column exactly as long as the date axis.
type Dataset struct {
	Dates   []time.Time          `json:"dates"`
	Columns map[string][]float64 `json:"columns"`
}

// New creates an empty dataset.
func New() *Dataset {
	return &Dataset{
		Columns: make(map[string][]float64),
	}
}

// Len returns the number of rows on the date axis.
func (d *Dataset) Len() int {
	return len(d.Dates)
}

// SeriesNames returns the column names in deterministic sorted order.
func (d *Dataset) SeriesNames() []string {
	names := make([]string, 0, len(d.Columns))
	for name := range d.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Column returns the values of the named series and whether it exists.
func (d *Dataset) Column(name string) ([]float64, bool) {
	values, ok := d.Columns[name]
	return values, ok
}

// AppendRow appends one date and one value per existing column. Missing
// columns in values get a zero; unknown names are rejected.
func (d *Dataset) AppendRow(date time.Time, values map[string]float64) error {
	for name := range values {
		if _, ok := d.Columns[name]; !ok && d.Len() > 0 {
			return fmt.Errorf("unknown series %q", name)
		}
	}

	if d.Len() > 0 && !date.After(d.Dates[len(d.Dates)-1]) {
		return fmt.Errorf("date %s does not advance the date axis", date.Format("2006-01-02"))
	}

	if d.Len() == 0 {
		for name := range values {
			if _, ok := d.Columns[name]; !ok {
				d.Columns[name] = nil
			}
		}
	}

	d.Dates = append(d.Dates, date)
	for name := range d.Columns {
		d.Columns[name] = append(d.Columns[name], values[name])
	}

	return nil
}

// Tail returns a view of the most recent n rows. When the dataset is
// shorter than n, the whole dataset is returned.
func (d *Dataset) Tail(n int) *Dataset {
	if n >= d.Len() {
		return d
	}

	start := d.Len() - n
	tail := &Dataset{
		Dates:   d.Dates[start:],
		Columns: make(map[string][]float64, len(d.Columns)),
	}
	for name, values := range d.Columns {
		tail.Columns[name] = values[start:]
	}

	return tail
}

// Validate checks the dataset invariants.
func (d *Dataset) Validate() error {
	if d.Len() == 0 {
		return fmt.Errorf("dataset has no rows")
	}

	for i := 1; i < len(d.Dates); i++ {
		if !d.Dates[i].After(d.Dates[i-1]) {
			return fmt.Errorf("dates not strictly increasing at row %d (%s -> %s)",
				i, d.Dates[i-1].Format("2006-01-02"), d.Dates[i].Format("2006-01-02"))
		}
	}

	for name, values := range d.Columns {
		if len(values) != d.Len() {
			return fmt.Errorf("series %q has %d values for %d dates", name, len(values), d.Len())
		}
		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("series %q has non-finite value at row %d", name, i)
			}
		}
	}

	return nil
}

// parseDate attempts to parse date strings in multiple formats
func parseDate(dateStr string) (time.Time, error) {
	dateFormats := []string{
		"2006-01-02",          // ISO format
		"01/02/2006",          // US format
		"02/01/2006",          // European format
		"2006/01/02",          // Alternative ISO
		"2006-01-02 15:04:05", // With time
	}

	for _, format := range dateFormats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
