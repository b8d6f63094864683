package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SetupLogger builds the process logger. Logs go to stderr (console or JSON
// encoded) and, when File is set, are also appended to that file as JSON.
// The returned closer releases the log file and is never nil.
func SetupLogger(cfg LogConfig, stderr io.Writer) (zerolog.Logger, func() error, error) {
	nop := func() error { return nil }

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var console io.Writer = stderr
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}

	if cfg.File == "" {
		return zerolog.New(console).Level(level).With().Timestamp().Logger(), nop, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return zerolog.Nop(), nop, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nop, fmt.Errorf("open log file: %w", err)
	}
	w := zerolog.MultiLevelWriter(console, f)
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), f.Close, nil
}
