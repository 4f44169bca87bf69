package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cuidar/medstock/internal/storage"
)

// BootstrapStore creates the database at path with the current schema,
// seeding demo data when asked, and closes it again.
func BootstrapStore(ctx context.Context, path string, seedDemo bool, logger *slog.Logger) (storage.Stats, error) {
	if path == "" {
		return storage.Stats{}, fmt.Errorf("%w: store path is required", ErrValidation)
	}

	guard := storage.NewGuard(storage.GuardOptions{Path: filepath.Clean(path), SeedDemo: seedDemo, Logger: logger})
	store, err := guard.EnsureReady(ctx)
	if err != nil {
		return storage.Stats{}, fmt.Errorf("bootstrap store: %w", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		_ = guard.Close()
		return storage.Stats{}, fmt.Errorf("bootstrap store: %w", err)
	}
	if err := guard.Close(); err != nil {
		return storage.Stats{}, fmt.Errorf("bootstrap store: close store: %w", err)
	}
	return stats, nil
}
