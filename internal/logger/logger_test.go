package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Options{Level: "debug", Format: "json", Output: &buf, ServiceName: "test"})

	ctx := l.WithContext(context.Background())
	ctx = SetScreenshotID(ctx, "shot-1")
	ctx = SetStage(ctx, "extracting")

	CtxInfo(ctx, "stage %s", "started")

	line := decodeLine(t, &buf)
	assert.Equal(t, "test", line["service"])
	assert.Equal(t, "shot-1", line[FieldScreenshotID])
	assert.Equal(t, "extracting", line[FieldStage])
	assert.Equal(t, "stage started", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line, "timestamp")
	assert.Equal(t, "shot-1", GetScreenshotID(ctx))
}

func TestEntryMetrics(t *testing.T) {
	var buf bytes.Buffer
	ctx := New(&Options{Output: &buf}).WithContext(context.Background())

	With(Fields{FieldBucket: "travel"}).WithCount(3).WithDuration(time.Now()).Info(ctx, "done")

	line := decodeLine(t, &buf)
	assert.Equal(t, "travel", line[FieldBucket])
	assert.EqualValues(t, 3, line[FieldCount])
	assert.Contains(t, line, FieldDurationMs)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	ctx := New(&Options{Level: "warn", Output: &buf}).WithContext(context.Background())

	CtxInfo(ctx, "hidden")
	assert.Zero(t, buf.Len())

	CtxWarn(ctx, "shown")
	assert.NotZero(t, buf.Len())
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Same(t, GetDefault(), FromContext(nil)) //nolint:staticcheck
	assert.Empty(t, GetRequestID(context.Background()))
}
