package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cuidar/medstock/internal/storage"
)

type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type Bundle struct {
	GeneratedAt string                   `json:"generated_at"`
	GOOS        string                   `json:"goos"`
	GOARCH      string                   `json:"goarch"`
	Version     map[string]any           `json:"version,omitempty"`
	Config      map[string]any           `json:"config,omitempty"`
	Store       *storage.Stats           `json:"store,omitempty"`
	Migration   *storage.MigrationReport `json:"migration,omitempty"`
	Checks      []Check                  `json:"checks,omitempty"`
	Notes       []string                 `json:"notes,omitempty"`
}

func NewBundle() Bundle {
	return Bundle{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
	}
}

// Healthy reports whether every recorded check passed.
func (b Bundle) Healthy() bool {
	for _, check := range b.Checks {
		if !check.OK {
			return false
		}
	}
	return true
}

// CollectStore brings the guard's store up and records its state into the
// bundle. Failures become failed checks rather than errors.
func CollectStore(ctx context.Context, bundle *Bundle, guard *storage.Guard) {
	if guard == nil {
		bundle.Checks = append(bundle.Checks, Check{Name: "store", OK: false, Message: storage.ErrNotInitialized.Error()})
		return
	}

	store, err := guard.EnsureReady(ctx)
	if err != nil {
		bundle.Checks = append(bundle.Checks, Check{Name: "store", OK: false, Message: err.Error()})
		return
	}
	bundle.Checks = append(bundle.Checks, Check{Name: "store", OK: true, Message: store.Path()})

	report := guard.MigrationReport()
	bundle.Migration = &report
	migrationCheck := Check{
		Name:    "schedule_format",
		OK:      report.Failed == 0,
		Message: fmt.Sprintf("scanned=%d rewritten=%d skipped=%d failed=%d", report.Scanned, report.Rewritten, report.Skipped, report.Failed),
	}
	bundle.Checks = append(bundle.Checks, migrationCheck)

	stats, err := store.Stats(ctx)
	if err != nil {
		bundle.Checks = append(bundle.Checks, Check{Name: "schema", OK: false, Message: err.Error()})
		return
	}
	bundle.Store = &stats
	bundle.Checks = append(bundle.Checks, Check{
		Name:    "schema",
		OK:      stats.SchemaVersion == storage.CurrentSchemaVersion(),
		Message: fmt.Sprintf("version %d", stats.SchemaVersion),
	})
	if stats.UnreadAlerts > 0 {
		bundle.Notes = append(bundle.Notes, fmt.Sprintf("%d unread alert(s)", stats.UnreadAlerts))
	}
}

func WriteBundle(outputPath string, bundle Bundle) error {
	if outputPath == "" {
		return fmt.Errorf("write debug bundle: output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o700); err != nil {
		return fmt.Errorf("write debug bundle: create output directory: %w", err)
	}

	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("write debug bundle: marshal json: %w", err)
	}
	if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
		return fmt.Errorf("write debug bundle: %w", err)
	}
	return nil
}
