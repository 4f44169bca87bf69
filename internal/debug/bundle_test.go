package debug

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuidar/medstock/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestWriteBundleWritesJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bundle.json")
	bundle := NewBundle()
	bundle.Version = map[string]any{"version": "1.2.3"}
	bundle.Config = map[string]any{"store_path": "/tmp/medstock.db"}

	require.NoError(t, WriteBundle(path, bundle))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Bundle
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, bundle.GOOS, decoded.GOOS)
	require.Equal(t, "1.2.3", decoded.Version["version"])
	require.Nil(t, decoded.Store)
}

func TestWriteBundleRequiresOutputPath(t *testing.T) {
	t.Parallel()

	err := WriteBundle("", NewBundle())
	require.Error(t, err)
	require.Contains(t, err.Error(), "output path is required")
}

func TestCollectStoreRecordsSeededStore(t *testing.T) {
	t.Parallel()

	guard := storage.NewGuard(storage.GuardOptions{
		Path:     filepath.Join(t.TempDir(), "medstock.db"),
		SeedDemo: true,
	})
	t.Cleanup(func() { _ = guard.Close() })

	bundle := NewBundle()
	CollectStore(context.Background(), &bundle, guard)

	require.True(t, bundle.Healthy())
	require.NotNil(t, bundle.Store)
	require.Equal(t, storage.CurrentSchemaVersion(), bundle.Store.SchemaVersion)
	require.Equal(t, 3, bundle.Store.Rows["medications"])
	require.NotNil(t, bundle.Migration)
	require.Zero(t, bundle.Migration.Failed)

	names := make([]string, 0, len(bundle.Checks))
	for _, check := range bundle.Checks {
		names = append(names, check.Name)
	}
	require.Equal(t, []string{"store", "schedule_format", "schema"}, names)
}

func TestCollectStoreReportsUnavailableStore(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	guard := storage.NewGuard(storage.GuardOptions{Path: filepath.Join(blocker, "medstock.db")})
	t.Cleanup(func() { _ = guard.Close() })

	bundle := NewBundle()
	CollectStore(context.Background(), &bundle, guard)

	require.False(t, bundle.Healthy())
	require.Len(t, bundle.Checks, 1)
	require.Equal(t, "store", bundle.Checks[0].Name)
	require.Nil(t, bundle.Store)
}

func TestCollectStoreWithoutGuard(t *testing.T) {
	t.Parallel()

	bundle := NewBundle()
	CollectStore(context.Background(), &bundle, nil)
	require.False(t, bundle.Healthy())
}
