package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", DefaultLevel, false},
		{"", DefaultLevel, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, "level for %q", tt.in)
		assert.Equal(t, tt.ok, ok, "ok for %q", tt.in)
	}
}

func TestSetupWithWriter_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup := SetupWithWriter(&buf, "warn", "")
	defer cleanup()

	logger.Info("hidden")
	logger.Warn("shown", "jobId", "abc")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "jobId=abc")
}

func TestSetupWithWriter_FanoutToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "gateway.log")

	logger, cleanup := SetupWithWriter(&buf, "info", path)
	logger.Info("proxied", "path", "research/start")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"proxied"`)
	assert.Contains(t, string(data), `"path":"research/start"`)
	assert.Contains(t, buf.String(), "proxied")
}
