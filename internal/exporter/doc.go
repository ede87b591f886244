// Package exporter writes forecast results to CSV report files.
//
// The package provides two layers: CSVWriter handles the mechanics of CSV
// file creation (UTF-8 BOM for Excel, append mode, streaming writes for
// large exports), while ForecastExporter flattens forecast results into
// per-day rows and per-series summary reports on top of it.
//
// All relative output paths resolve into the configured reports directory;
// absolute paths are honored as given.
package exporter
