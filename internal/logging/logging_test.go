package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStructuredLogger(t *testing.T) {
	t.Run("writes json records", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)
		logger.Info("route fetched", slog.String("component", "routing"), slog.Int("candidates", 2))

		out := buf.String()
		assert.Contains(t, out, `"level":"INFO"`)
		assert.Contains(t, out, `"msg":"route fetched"`)
		assert.Contains(t, out, `"component":"routing"`)
		assert.Contains(t, out, `"candidates":2`)
	})

	t.Run("respects level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelWarn)
		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	LogError(logger, "route request failed", assert.AnError, slog.String("session_id", "s-1"))
	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"session_id":"s-1"`)
	assert.Contains(t, out, assert.AnError.Error())

	assert.NotPanics(t, func() { LogError(nil, "nothing", assert.AnError) })
}

func TestLogOperationSkipsZeroDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	LogOperation(logger, "session_closed", slog.Duration("duration", 0), slog.String("session_id", "s-2"))
	assert.NotContains(t, buf.String(), `"duration"`)

	buf.Reset()
	LogOperation(logger, "session_closed", slog.Duration("duration", time.Second))
	assert.Contains(t, buf.String(), `"duration"`)
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")

	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}
