package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cuidar/medstock/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the process logger. With logging.file set it writes JSON lines to
// a rotating file; otherwise it writes text to fallback. The returned closer
// releases the file, if any.
func New(cfg config.LoggingConfig, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.TrimSpace(cfg.File) != "" {
		writer, err := NewRotatingWriter(cfg)
		if err != nil {
			return nil, nil, err
		}
		logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(writer, opts)))
		return logger, writer, nil
	}

	if fallback == nil {
		fallback = io.Discard
	}
	logger := slog.New(NewRedactingHandler(slog.NewTextHandler(fallback, opts)))
	return logger, nopCloser{}, nil
}

func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}
