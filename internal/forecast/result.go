package forecast

import (
	"encoding/json"
	"sort"
	"time"
)

// Point is one point forecast for one series on one future day.
// Lower/Upper/ConfidenceInterval are present only when confidence bands
// were requested.
type Point struct {
	Mean               float64  `json:"mean"`
	Lower              *float64 `json:"lower,omitempty"`
	Upper              *float64 `json:"upper,omitempty"`
	ConfidenceInterval *float64 `json:"confidence_interval,omitempty"`
	Unit               string   `json:"unit"`
}

// DayForecast maps series name to its point forecast for one day.
type DayForecast map[string]Point

// Quality records the non-fatal degradations encountered while preparing
// the forecast input, so consumers can assert on them without parsing logs.
type Quality struct {
	// Padded reports that the supplied history was shorter than the
	// lookback window and was left-padded with zero rows.
	Padded bool `json:"padded"`
	// PaddedRows is the number of zero rows prepended.
	PaddedRows int `json:"padded_rows,omitempty"`
	// DroppedSeries lists requested series missing from the history.
	DroppedSeries []string `json:"dropped_series,omitempty"`
	// HonoredSeries lists the series actually forecast, in output order.
	HonoredSeries []string `json:"honored_series"`
}

// Degraded reports whether any degradation was recorded.
func (q Quality) Degraded() bool {
	return q.Padded || len(q.DroppedSeries) > 0
}

// Result is a complete multi-day forecast. Days is keyed by ISO date string
// then series name. The JSON form of a Result is exactly the nested
// date→series map, which downstream consumers depend on; RunID and Quality
// are in-process metadata on top of that shape.
type Result struct {
	Days        map[string]DayForecast
	Quality     Quality
	RunID       string
	GeneratedAt time.Time
}

// MarshalJSON preserves the backward-compatible output shape:
// { "YYYY-MM-DD": { series: {mean, lower?, upper?, confidence_interval?, unit} } }
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Days)
}

// DateKeys returns the forecast dates in ascending order.
func (r *Result) DateKeys() []string {
	keys := make([]string, 0, len(r.Days))
	for k := range r.Days {
		keys = append(keys, k)
	}
	sort.Strings(keys) // ISO dates sort chronologically
	return keys
}
