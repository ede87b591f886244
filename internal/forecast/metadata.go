package forecast

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultUnit is the placeholder unit for series without sidecar metadata.
const DefaultUnit = "unit"

// SeriesMetadata describes the display unit and optional physical bounds of
// one series. The table is static per forecaster instance, loaded once from
// a small JSON sidecar at construction.
type SeriesMetadata struct {
	Unit        string   `json:"unit"`
	DisplayName string   `json:"display_name,omitempty"`
	MinValue    *float64 `json:"min_value,omitempty"`
	MaxValue    *float64 `json:"max_value,omitempty"`
}

// MetadataTable maps series names to their metadata.
type MetadataTable map[string]SeriesMetadata

// LoadMetadata reads a metadata sidecar document:
//
//	{ "flour": {"unit": "kg"}, "tomato": {"unit": "kg", "max_value": 500} }
func LoadMetadata(path string) (MetadataTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata sidecar: %w", err)
	}

	var table MetadataTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse metadata sidecar: %w", err)
	}

	return table, nil
}

// Unit returns the display unit for a series, falling back to DefaultUnit.
func (m MetadataTable) Unit(series string) string {
	if meta, ok := m[series]; ok && meta.Unit != "" {
		return meta.Unit
	}
	return DefaultUnit
}

// Clamp bounds a forecast value to the series' declared physical range.
// Unbounded series and series without metadata pass through unchanged.
func (m MetadataTable) Clamp(series string, value float64) float64 {
	meta, ok := m[series]
	if !ok {
		return value
	}
	if meta.MinValue != nil && value < *meta.MinValue {
		value = *meta.MinValue
	}
	if meta.MaxValue != nil && value > *meta.MaxValue {
		value = *meta.MaxValue
	}
	return value
}
