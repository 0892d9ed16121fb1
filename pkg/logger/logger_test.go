package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return logger from context when present", func(t *testing.T) {
		expected := NewForTests()
		ctx := ContextWithLogger(t.Context(), expected)
		actual := FromContext(ctx)
		require.NotNil(t, actual)
		assert.Equal(t, expected, actual)
	})

	t.Run("Should return default logger when no logger in context", func(t *testing.T) {
		l := FromContext(t.Context())
		require.NotNil(t, l)
	})

	t.Run("Should return default logger when wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(t.Context(), LoggerCtxKey, "not a logger")
		require.NotNil(t, FromContext(ctx))
	})

	t.Run("Should return default logger when nil logger in context", func(t *testing.T) {
		ctx := context.WithValue(t.Context(), LoggerCtxKey, (Logger)(nil))
		require.NotNil(t, FromContext(ctx))
	})
}

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	t.Run("Should convert all log levels to charm log levels", func(t *testing.T) {
		cases := []struct {
			level    LogLevel
			expected int
		}{
			{DebugLevel, -4},
			{InfoLevel, 0},
			{WarnLevel, 4},
			{ErrorLevel, 8},
			{DisabledLevel, 1000},
			{LogLevel("unknown"), 0},
		}
		for _, tc := range cases {
			assert.Equal(t, tc.expected, int(tc.level.ToCharmlogLevel()), "level %s", tc.level)
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should emit JSON records with key values", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true, TimeFormat: "15:04:05"})
		l.Info("Knowledge index loaded", "records", 3)
		var record map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
		assert.Equal(t, "Knowledge index loaded", record["msg"])
		assert.EqualValues(t, 3, record["records"])
	})

	t.Run("Should carry fields added through With", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: DebugLevel, Output: &buf, JSON: true}).With("component", "webhook")
		l.Debug("Message received")
		assert.Contains(t, buf.String(), `"component":"webhook"`)
	})

	t.Run("Should drop messages below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: WarnLevel, Output: &buf})
		l.Info("hidden")
		l.Warn("shown")
		assert.False(t, strings.Contains(buf.String(), "hidden"))
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestGetLoggerConfig(t *testing.T) {
	t.Run("Should read persistent logging flags", func(t *testing.T) {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String("log-level", "info", "")
		cmd.Flags().Bool("log-json", false, "")
		cmd.Flags().Bool("log-source", false, "")
		require.NoError(t, cmd.Flags().Set("log-level", "debug"))
		require.NoError(t, cmd.Flags().Set("log-json", "true"))
		level, asJSON, source, err := GetLoggerConfig(cmd)
		require.NoError(t, err)
		assert.Equal(t, DebugLevel, level)
		assert.True(t, asJSON)
		assert.False(t, source)
	})

	t.Run("Should fail when flags are not registered", func(t *testing.T) {
		_, _, _, err := GetLoggerConfig(&cobra.Command{Use: "bare"})
		assert.Error(t, err)
	})
}
