package logging

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger(t *testing.T) {
	t.Run("writes JSON with attributes", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		logger.Info("test message", slog.String("component", "raptor"), slog.Int("rounds", 4))

		output := buf.String()
		assert.Contains(t, output, `"level":"INFO"`)
		assert.Contains(t, output, `"msg":"test message"`)
		assert.Contains(t, output, `"component":"raptor"`)
		assert.Contains(t, output, `"rounds":4`)
	})

	t.Run("respects log level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelWarn)

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warning message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warning message")
	})
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		want    string
		wantErr bool
	}{
		{name: "json default", format: "", level: "", want: `"msg":"hello"`},
		{name: "text", format: "text", level: "debug", want: "msg=hello"},
		{name: "unknown format", format: "xml", level: "info", wantErr: true},
		{name: "unknown level", format: "json", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(&buf, tt.format, tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Info("hello")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestLoggerHelpers(t *testing.T) {
	t.Run("LogError", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		LogError(logger, "failed to fetch trip updates", assert.AnError, slog.String("url", "http://example.com"))

		output := buf.String()
		assert.Contains(t, output, `"level":"ERROR"`)
		assert.Contains(t, output, `"error":"assert.AnError general error for testing"`)
		assert.Contains(t, output, `"url":"http://example.com"`)
	})

	t.Run("LogOperation drops zero durations", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		LogOperation(logger, "snapshot_published",
			slog.Int("patterns", 12),
			slog.Duration("duration", 0),
			slog.Duration("build_time", time.Second))

		output := buf.String()
		assert.Contains(t, output, `"msg":"snapshot_published"`)
		assert.Contains(t, output, `"patterns":12`)
		assert.NotContains(t, output, `"duration"`)
		assert.Contains(t, output, `"build_time"`)
	})

	t.Run("LogHTTPRequest", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		LogHTTPRequest(logger, "GET", "/api/where/plan-trip.json", 200, 1.5)

		output := buf.String()
		assert.Contains(t, output, `"msg":"http_request"`)
		assert.Contains(t, output, `"path":"/api/where/plan-trip.json"`)
		assert.Contains(t, output, `"status":200`)
		assert.Contains(t, output, `"duration_ms":1.5`)
	})

	t.Run("nil logger is ignored", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogError(nil, "x", assert.AnError)
			LogOperation(nil, "x")
			LogHTTPRequest(nil, "GET", "/", 200, 0)
		})
	})
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	FromContext(WithLogger(context.Background(), logger)).Info("from context")
	assert.Contains(t, buf.String(), "from context")

	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

type errorCloser struct{ err error }

func (c *errorCloser) Close() error { return c.err }

type fakeTx struct{ err error }

func (tx *fakeTx) Rollback() error { return tx.err }

func TestSafeCleanup(t *testing.T) {
	t.Run("close failure is logged", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		SafeCloseWithLogging(&errorCloser{err: assert.AnError}, logger, "realtime_body")

		assert.Contains(t, buf.String(), `"msg":"failed to close resource"`)
		assert.Contains(t, buf.String(), `"operation":"realtime_body"`)
	})

	t.Run("successful close logs nothing", func(t *testing.T) {
		var buf bytes.Buffer
		SafeCloseWithLogging(&errorCloser{}, NewStructuredLogger(&buf, slog.LevelInfo), "noop")
		assert.Empty(t, buf.String())
	})

	t.Run("rollback after commit is silent", func(t *testing.T) {
		var buf bytes.Buffer
		SafeRollbackWithLogging(&fakeTx{err: sql.ErrTxDone}, NewStructuredLogger(&buf, slog.LevelInfo), "insert_stops")
		assert.Empty(t, buf.String())
	})

	t.Run("rollback failure is logged", func(t *testing.T) {
		var buf bytes.Buffer
		SafeRollbackWithLogging(&fakeTx{err: assert.AnError}, NewStructuredLogger(&buf, slog.LevelInfo), "insert_stops")
		assert.Contains(t, buf.String(), `"msg":"failed to rollback transaction"`)
	})
}
