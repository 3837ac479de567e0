package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContext_AddsRequestAndJobID(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelDebug, "json")
	t.Cleanup(func() { Init(slog.LevelInfo, "text") })

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = WithJobID(ctx, "job-42")
	InfoContext(ctx, "hello", "files", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "job-42", line["job_id"])
	assert.EqualValues(t, 2, line["files"])
}

func TestInitWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelWarn, "text")
	t.Cleanup(func() { Init(slog.LevelInfo, "text") })

	Info("dropped")
	Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
