package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentPicksUpLaterInit(t *testing.T) {
	log := Component("sales_loader")

	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelInfo, true)

	log.Info("stored partition", "rows", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sales_loader", entry["component"])
	assert.Equal(t, "stored partition", entry["msg"])
	assert.EqualValues(t, 2, entry["rows"])
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelDebug, true)

	ctx := ContextWithRunID(context.Background(), "run-1")
	ctx = ContextWithPartition(ctx, "2025-02-24-10:00")

	FromContext(ctx, Component("aggregator")).Warn("empty")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "2025-02-24-10:00", entry["partition"])
	assert.Equal(t, "aggregator", entry["component"])
	assert.Equal(t, "run-1", RunID(ctx))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
