package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cuidar/medstock/internal/config"
)

// NewRotatingWriter opens the medstock log file named by logging.file
// (MEDSTOCK_LOG_FILE). The file rolls over at logging.max_size_mb and keeps
// logging.max_files backups, stamped with local time so they line up with
// the movement history an operator reads. Zero limits fall back to the
// values from config.DefaultConfig.
func NewRotatingWriter(cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return nil, fmt.Errorf("logging.file must not be empty")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("logging.file %q is a directory", path)
	}

	defaults := config.DefaultConfig().Logging
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = defaults.MaxSizeMB
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaults.MaxFiles
	}

	// Logs carry medication names; keep the directory private like the store.
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
		LocalTime:  true,
	}, nil
}
