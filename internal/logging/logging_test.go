// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

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

func TestAppendCtx(t *testing.T) {
	ctx := AppendCtx(context.TODO(), slog.String("meeting_id", "85012345678"))

	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	require.Len(t, attrs, 1)
	assert.Equal(t, "meeting_id", attrs[0].Key)
	assert.Equal(t, "85012345678", attrs[0].Value.String())
}

func TestAppendCtx_SiblingsDoNotShareAttrs(t *testing.T) {
	parent := AppendCtx(context.Background(), slog.String("meeting_id", "1"))
	parent = AppendCtx(parent, slog.String("event_type", "meeting.started"))

	left := AppendCtx(parent, slog.String("participant_uuid", "left"))
	right := AppendCtx(parent, slog.String("participant_uuid", "right"))

	leftAttrs := left.Value(slogFields).([]slog.Attr)
	rightAttrs := right.Value(slogFields).([]slog.Attr)

	require.Len(t, leftAttrs, 3)
	require.Len(t, rightAttrs, 3)
	assert.Equal(t, "left", leftAttrs[2].Value.String())
	assert.Equal(t, "right", rightAttrs[2].Value.String())
}

func TestNewHandler_WritesContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := AppendCtx(context.Background(), slog.String("meeting_id", "42"))
	logger.InfoContext(ctx, "reconciliation started", "entries", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "reconciliation started", record["msg"])
	assert.Equal(t, "42", record["meeting_id"])
	assert.EqualValues(t, 3, record["entries"])
}

func TestNewHandler_WithAttrsKeepsContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, nil)).With("component", "gateway")

	ctx := AppendCtx(context.Background(), slog.String("category", "report"))
	logger.InfoContext(ctx, "dispatch")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "gateway", record["component"])
	assert.Equal(t, "report", record["category"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		value    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{" INFO ", slog.LevelInfo},
		{"", slog.LevelDebug},
		{"verbose", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.value))
		})
	}
}

func TestInitStructureLogConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_ADD_SOURCE", "1")

	handler := InitStructureLogConfig()
	require.NotNil(t, handler)
	assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelWarn))
}

func TestPriorityCritical(t *testing.T) {
	attr := PriorityCritical()
	assert.Equal(t, "priority", attr.Key)
	assert.Equal(t, "critical", attr.Value.String())
}
