package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sales-pipeline/internal/config"
)

// New creates a JSON slog logger for cfg. The returned closer releases the
// log file when output is "file" or "both"; it is a no-op otherwise.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var (
		output io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)

	switch strings.ToLower(cfg.Output) {
	case "file", "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		closer = file
		output = file
		if strings.EqualFold(cfg.Output, "both") {
			output = io.MultiWriter(os.Stdout, file)
		}
	}

	return slog.New(slog.NewJSONHandler(output, opts)), closer, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", filepath.Dir(path), err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
