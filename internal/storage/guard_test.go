package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGuardConcurrentEnsureReadyRunsSetupOnce(t *testing.T) {
	t.Parallel()

	guard := NewGuard(GuardOptions{Path: rawDBPath(t), SeedDemo: true})
	t.Cleanup(func() { _ = guard.Close() })

	var opens, prepares, seeds, migrations atomic.Int32
	countSteps(guard, &opens, &prepares, &seeds, &migrations)
	open := guard.steps.open
	guard.steps.open = func(path string, logger *slog.Logger) (*Store, error) {
		time.Sleep(50 * time.Millisecond)
		return open(path, logger)
	}

	const callers = 16
	stores := make([]*Store, callers)
	var group errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		group.Go(func() error {
			store, err := guard.EnsureReady(context.Background())
			stores[i] = store
			return err
		})
	}
	require.NoError(t, group.Wait())

	for _, store := range stores {
		require.Same(t, stores[0], store)
	}
	require.Equal(t, int32(1), opens.Load())
	require.Equal(t, int32(1), prepares.Load())
	require.Equal(t, int32(1), seeds.Load())
	require.Equal(t, int32(1), migrations.Load())
	require.Equal(t, GuardReady, guard.State())

	store, err := guard.Store()
	require.NoError(t, err)
	medications, err := store.Medications.List(context.Background(), MedicationFilter{})
	require.NoError(t, err)
	require.Len(t, medications, len(demoMedications()))

	again, err := guard.EnsureReady(context.Background())
	require.NoError(t, err)
	require.Same(t, stores[0], again)
	require.Equal(t, int32(1), prepares.Load())
}

func TestGuardStoreBeforeReady(t *testing.T) {
	t.Parallel()

	guard := NewGuard(GuardOptions{Path: rawDBPath(t)})
	_, err := guard.Store()
	require.ErrorIs(t, err, ErrNotInitialized)
	require.Equal(t, GuardUninitialized, guard.State())

	var nilGuard *Guard
	_, err = nilGuard.EnsureReady(context.Background())
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestGuardFailureIsSharedThenRetried(t *testing.T) {
	t.Parallel()

	guard := NewGuard(GuardOptions{Path: rawDBPath(t)})
	t.Cleanup(func() { _ = guard.Close() })

	boom := errors.New("disk on fire")
	var attempts atomic.Int32
	prepare := guard.steps.prepare
	guard.steps.prepare = func(ctx context.Context, db *sql.DB) error {
		if attempts.Add(1) == 1 {
			time.Sleep(150 * time.Millisecond)
			return boom
		}
		return prepare(ctx, db)
	}

	const callers = 6
	var group errgroup.Group
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		group.Go(func() error {
			_, errs[i] = guard.EnsureReady(context.Background())
			return nil
		})
	}
	require.NoError(t, group.Wait())
	for _, err := range errs {
		require.ErrorIs(t, err, boom)
	}
	require.Equal(t, GuardFailed, guard.State())
	require.ErrorIs(t, guard.LastError(), boom)
	_, err := guard.Store()
	require.ErrorIs(t, err, ErrNotInitialized)

	store, err := guard.EnsureReady(context.Background())
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, int32(2), attempts.Load())
	require.Equal(t, GuardReady, guard.State())
	require.NoError(t, guard.LastError())
}

func TestGuardCancelledCallerDoesNotPoisonSetup(t *testing.T) {
	t.Parallel()

	guard := NewGuard(GuardOptions{Path: rawDBPath(t)})
	t.Cleanup(func() { _ = guard.Close() })

	release := make(chan struct{})
	var prepares atomic.Int32
	prepare := guard.steps.prepare
	guard.steps.prepare = func(ctx context.Context, db *sql.DB) error {
		prepares.Add(1)
		<-release
		return prepare(ctx, db)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := guard.EnsureReady(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return prepares.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(release)
	store, err := guard.EnsureReady(context.Background())
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, int32(1), prepares.Load())
}

func TestGuardSkipsSeedWhenDisabledOrPopulated(t *testing.T) {
	t.Parallel()

	path := rawDBPath(t)
	guard := NewGuard(GuardOptions{Path: path})
	store, err := guard.EnsureReady(context.Background())
	require.NoError(t, err)
	medications, err := store.Medications.List(context.Background(), MedicationFilter{})
	require.NoError(t, err)
	require.Empty(t, medications)
	mustCreateMedication(t, store, "Propranolol", "40mg")
	require.NoError(t, guard.Close())
	require.Equal(t, GuardUninitialized, guard.State())

	seeding := NewGuard(GuardOptions{Path: path, SeedDemo: true})
	t.Cleanup(func() { _ = seeding.Close() })
	store, err = seeding.EnsureReady(context.Background())
	require.NoError(t, err)
	medications, err = store.Medications.List(context.Background(), MedicationFilter{})
	require.NoError(t, err)
	require.Len(t, medications, 1)
}

func TestGuardRunsLegacyMigrationOnStart(t *testing.T) {
	t.Parallel()

	path := rawDBPath(t)
	store, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, PrepareSchema(context.Background(), store.DB()))
	medication := mustCreateMedication(t, store, "Gabapentina", "300mg")
	id := insertRawSchedule(t, store.DB(), medication.ID, `{"segunda":true,"terca":true,"quarta":false}`)
	require.NoError(t, store.Close())

	guard := NewGuard(GuardOptions{Path: path})
	t.Cleanup(func() { _ = guard.Close() })
	ready, err := guard.EnsureReady(context.Background())
	require.NoError(t, err)
	require.Equal(t, `["Seg","Ter"]`, rawWeekdays(t, ready, id))
	require.Equal(t, 1, guard.MigrationReport().Rewritten)
}

func countSteps(guard *Guard, opens, prepares, seeds, migrations *atomic.Int32) {
	open, prepare, seed, migrate := guard.steps.open, guard.steps.prepare, guard.steps.seed, guard.steps.migrate
	guard.steps.open = func(path string, logger *slog.Logger) (*Store, error) {
		opens.Add(1)
		return open(path, logger)
	}
	guard.steps.prepare = func(ctx context.Context, db *sql.DB) error {
		prepares.Add(1)
		return prepare(ctx, db)
	}
	guard.steps.seed = func(ctx context.Context, db *sql.DB) (bool, error) {
		seeds.Add(1)
		return seed(ctx, db)
	}
	guard.steps.migrate = func(ctx context.Context, store *Store) MigrationReport {
		migrations.Add(1)
		return migrate(ctx, store)
	}
}
