package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecastcli/internal/config"
)

func testLoggingConfig(t *testing.T, level string) config.LoggingConfig {
	t.Helper()
	return config.LoggingConfig{
		Level:    level,
		Format:   "json",
		Output:   "both",
		FilePath: filepath.Join(t.TempDir(), "pipeline.log"),
	}
}

func readLogLines(t *testing.T, path string) []map[string]any {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "log line is not JSON: %s", line)
		entries = append(entries, entry)
	}
	return entries
}

func TestInitializeLoggerWritesJSONFile(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	cfg := testLoggingConfig(t, "info")

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("forecast generated", "horizon_days", 7, "series", 2)
	CloseLogFile()

	entries := readLogLines(t, cfg.FilePath)
	require.Len(t, entries, 1)
	assert.Equal(t, "forecast generated", entries[0]["msg"])
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, float64(7), entries[0]["horizon_days"])
	assert.Equal(t, float64(2), entries[0]["series"])
}

func TestTraceIDInjectedIntoForecastLogs(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	cfg := testLoggingConfig(t, "debug")

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "run-trace-42")
	logger.InfoContext(ctx, "forecast report generated", "job", "demand")
	CloseLogFile()

	entries := readLogLines(t, cfg.FilePath)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-trace-42", entries[0]["trace_id"])
	assert.Equal(t, "demand", entries[0]["job"])
}

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	generated := GetTraceID(ctx)
	require.NotEmpty(t, generated, "expected a trace ID to be minted")

	// An existing trace ID survives repeated calls.
	again := EnsureTraceID(ctx)
	assert.Equal(t, generated, GetTraceID(again))

	// Runs stay distinguishable from each other.
	other := EnsureTraceID(context.Background())
	assert.NotEqual(t, generated, GetTraceID(other))
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			ResetLoggerForTesting()
			defer ResetLoggerForTesting()

			cfg := testLoggingConfig(t, tt.level)

			logger, err := InitializeLogger(cfg)
			require.NoError(t, err)

			logger.Log(context.Background(), parseLogLevel(tt.level), "training run complete")
			CloseLogFile()

			entries := readLogLines(t, cfg.FilePath)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.expected, entries[0]["level"])
		})
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithComponent(logger, "demand-forecaster").Info("scaling artifact loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "demand-forecaster", entry["component"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithError(logger, os.ErrNotExist).Error("prediction failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["error"], "file does not exist")

	// A nil error adds nothing.
	buf.Reset()
	WithError(logger, nil).Info("forecast generated")

	entry = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "error")
}
