package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log output formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures the process logger.
type Options struct {
	// Debug lowers the level to debug.
	Debug bool

	// Format is "text" (default) or "json".
	Format string

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New builds a logger from opts.
func New(opts Options) (*slog.Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		handler = slog.NewTextHandler(w, hopts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, hopts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (use %s or %s)", opts.Format, FormatText, FormatJSON)
	}
	return slog.New(handler), nil
}

// Setup builds a logger from opts and installs it as the slog default.
func Setup(opts Options) (*slog.Logger, error) {
	logger, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
