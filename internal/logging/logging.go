// Package logging builds the slog loggers shared by the gateway, the dev
// backend and the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultLevel is the log level used when not configured.
const DefaultLevel = slog.LevelInfo

// ParseLevel converts "debug", "info", "warn" or "error" (any case) to a
// slog.Level. Unknown values return (DefaultLevel, false).
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return DefaultLevel, false
	}
}

// Setup creates a logger writing text to stderr and, when logFile is set,
// JSON to a size-rotated file. The returned cleanup closes the file.
func Setup(level, logFile string) (*slog.Logger, func() error) {
	return SetupWithWriter(os.Stderr, level, logFile)
}

// SetupWithWriter is Setup with a custom console writer.
func SetupWithWriter(console io.Writer, level, logFile string) (*slog.Logger, func() error) {
	lvl, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}

	consoleHandler := slog.NewTextHandler(console, opts)
	if logFile == "" {
		return slog.New(consoleHandler), func() error { return nil }
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	logger := slog.New(slogmulti.Fanout(
		consoleHandler,
		slog.NewJSONHandler(rotator, opts),
	))

	return logger, rotator.Close
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
