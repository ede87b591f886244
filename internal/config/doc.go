// Package config provides centralized configuration management for the
// forecasting pipeline. Configuration is loaded from environment variables
// (prefix FORECAST_*), an optional YAML config file, and built-in defaults,
// in that order of precedence:
//
//	FORECAST_FORECAST_LOOKBACK_DAYS=30
//	FORECAST_FORECAST_DEFAULT_HORIZON=7
//	FORECAST_LOGGING_LEVEL=info
//	FORECAST_PATHS_DATA_DIR=data
//
// The Paths section is the single source of truth for artifact locations:
// the persisted scaling transform, the series metadata sidecar, input data
// and report output directories.
package config
