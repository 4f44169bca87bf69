package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

type GuardState int

const (
	GuardUninitialized GuardState = iota
	GuardInitializing
	GuardReady
	GuardFailed
)

func (s GuardState) String() string {
	switch s {
	case GuardUninitialized:
		return "uninitialized"
	case GuardInitializing:
		return "initializing"
	case GuardReady:
		return "ready"
	case GuardFailed:
		return "failed"
	default:
		return fmt.Sprintf("GuardState(%d)", int(s))
	}
}

type GuardOptions struct {
	Path     string
	SeedDemo bool
	Logger   *slog.Logger
}

type guardSteps struct {
	open    func(path string, logger *slog.Logger) (*Store, error)
	prepare func(ctx context.Context, db *sql.DB) error
	seed    func(ctx context.Context, db *sql.DB) (bool, error)
	migrate func(ctx context.Context, store *Store) MigrationReport
}

// Guard makes store setup happen once. Concurrent EnsureReady callers share
// a single attempt; a failed attempt is forgotten so the next call retries.
type Guard struct {
	opts   GuardOptions
	logger *slog.Logger
	steps  guardSteps
	group  singleflight.Group

	mu      sync.Mutex
	state   GuardState
	store   *Store
	lastErr error
	report  MigrationReport
}

func NewGuard(opts GuardOptions) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}
	return &Guard{
		opts:   opts,
		logger: logger,
		steps: guardSteps{
			open:    Open,
			prepare: PrepareSchema,
			seed:    SeedDemo,
			migrate: func(ctx context.Context, store *Store) MigrationReport { return store.MigrateScheduleFormat(ctx) },
		},
	}
}

// EnsureReady opens the store, prepares the schema, seeds demo data when
// enabled and the database is empty, then runs the legacy weekday migration.
// Once that succeeds every later call returns the same store.
func (g *Guard) EnsureReady(ctx context.Context) (*Store, error) {
	if g == nil {
		return nil, ErrNotInitialized
	}

	g.mu.Lock()
	if g.state == GuardReady {
		store := g.store
		g.mu.Unlock()
		return store, nil
	}
	g.mu.Unlock()

	setupCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan("setup", func() (any, error) {
		return g.setup(setupCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Guard) setup(ctx context.Context) (*Store, error) {
	g.mu.Lock()
	if g.state == GuardReady {
		store := g.store
		g.mu.Unlock()
		return store, nil
	}
	g.state = GuardInitializing
	g.mu.Unlock()

	store, report, err := g.runSteps(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.state = GuardFailed
		g.lastErr = err
		g.logger.Error("store setup failed", "path", g.opts.Path, "error", err)
		return nil, err
	}
	g.state = GuardReady
	g.store = store
	g.lastErr = nil
	g.report = report
	g.logger.Info("store ready", "path", g.opts.Path, "schema_version", CurrentSchemaVersion())
	return store, nil
}

func (g *Guard) runSteps(ctx context.Context) (*Store, MigrationReport, error) {
	store, err := g.steps.open(g.opts.Path, g.logger)
	if err != nil {
		return nil, MigrationReport{}, fmt.Errorf("ensure ready: %w", err)
	}

	if err := g.steps.prepare(ctx, store.DB()); err != nil {
		_ = store.Close()
		return nil, MigrationReport{}, fmt.Errorf("ensure ready: prepare schema: %w", err)
	}

	if g.opts.SeedDemo {
		seeded, err := g.steps.seed(ctx, store.DB())
		if err != nil {
			_ = store.Close()
			return nil, MigrationReport{}, fmt.Errorf("ensure ready: %w", err)
		}
		if seeded {
			g.logger.Info("demo data seeded", "path", g.opts.Path)
		}
	}

	report := g.steps.migrate(ctx, store)
	return store, report, nil
}

// Store returns the ready store, or ErrNotInitialized before setup succeeds.
func (g *Guard) Store() (*Store, error) {
	if g == nil {
		return nil, ErrNotInitialized
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != GuardReady || g.store == nil {
		return nil, ErrNotInitialized
	}
	return g.store, nil
}

func (g *Guard) State() GuardState {
	if g == nil {
		return GuardUninitialized
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// LastError is the error of the most recent failed attempt, if any.
func (g *Guard) LastError() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// MigrationReport is the outcome of the legacy migration run during setup.
func (g *Guard) MigrationReport() MigrationReport {
	if g == nil {
		return MigrationReport{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.report
}

func (g *Guard) Close() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	store := g.store
	g.store = nil
	g.state = GuardUninitialized
	g.report = MigrationReport{}
	if store == nil {
		return nil
	}
	return store.Close()
}
