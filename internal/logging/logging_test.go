package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("default format is JSON with RFC3339 timestamps", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := New(WithOutput(&buf))

		logger.Info("sync finished", "pages", 3)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "sync finished", entry["msg"])
		assert.EqualValues(t, 3, entry["pages"])

		ts, ok := entry["time"].(string)
		require.True(t, ok, "time field should be a string")
		_, err := time.Parse(time.RFC3339, ts)
		assert.NoError(t, err)
	})

	t.Run("debug is filtered at info level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := New(WithOutput(&buf))

		logger.Debug("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("text format writes key=value", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := New(WithOutput(&buf), WithFormat(FormatText), WithLevel(slog.LevelDebug))

		logger.Debug("probe", "source", "vercel/next.js")
		out := buf.String()
		assert.True(t, strings.Contains(out, "source=vercel/next.js"), out)
		assert.True(t, strings.Contains(out, "level=DEBUG"), out)
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FormatText, ParseFormat(" Text "))
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatJSON, ParseFormat(""))
}
