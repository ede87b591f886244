package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandlerCaptures(t *testing.T) {
	logger, handler := NewTestLogger(nil)

	logger.Info("window padded", "padded_rows", 5)
	logger.Warn("series dropped", "series", "ghost")

	records := handler.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "window padded", records[0].Message)
	assert.Equal(t, int64(5), records[0].Attrs["padded_rows"])

	warns := handler.RecordsByLevel(slog.LevelWarn)
	require.Len(t, warns, 1)
	assert.Equal(t, "series dropped", warns[0].Message)
}

func TestContainsHelpers(t *testing.T) {
	logger, handler := NewTestLogger(nil)

	logger.Warn("requested series not found in history, skipping", "series", "ghost")

	assert.True(t, handler.ContainsMessage("series not found"))
	assert.False(t, handler.ContainsMessage("padding"))
	assert.True(t, handler.ContainsAttr("series", "ghost"))
	assert.False(t, handler.ContainsAttr("series", "flour"))
}
