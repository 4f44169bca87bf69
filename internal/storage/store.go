package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Pragmas go in the DSN so every pooled connection gets them, not just the
// first one. Transactions take the write lock at BEGIN; a deferred
// read-then-write transaction can fail with SQLITE_BUSY_SNAPSHOT under WAL.
const (
	pragmaForeignKeysOn  = `_pragma=foreign_keys(1)`
	pragmaBusyTimeout    = `_pragma=busy_timeout(5000)`
	pragmaJournalModeWAL = `_pragma=journal_mode(WAL)`
	txLockImmediate      = `_txlock=immediate`

	memoryPath = ":memory:"
)

type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	Medications MedicationRepository
	Stock       StockRepository
	Movements   MovementRepository
	Alerts      AlertRepository
	Schedules   ScheduleRepository
}

// Open opens or creates the SQLite file at path and attaches the
// repositories. It does not touch the schema; see PrepareSchema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open storage: empty path")
	}
	if logger == nil {
		logger = discardLogger()
	}

	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("open storage: create parent dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if path == memoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(4)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open storage: ping: %w", err)
	}

	if path != memoryPath {
		if err := ensureDBPermissions(path); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return newStore(db, path, logger), nil
}

func newStore(db *sql.DB, path string, logger *slog.Logger) *Store {
	stockLocks := &keyedMutex{}
	return &Store{
		db:          db,
		path:        path,
		logger:      logger,
		Medications: &medicationRepository{db: db},
		Stock:       &stockRepository{db: db, locks: stockLocks},
		Movements:   &movementRepository{db: db},
		Alerts:      &alertRepository{db: db},
		Schedules:   &scheduleRepository{db: db},
	}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Stats is a point-in-time summary of the store, used by health checks.
type Stats struct {
	SchemaVersion int            `json:"schema_version"`
	Rows          map[string]int `json:"rows"`
	UnreadAlerts  int            `json:"unread_alerts"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if s == nil || s.db == nil {
		return Stats{}, ErrNotInitialized
	}

	version, err := readSchemaVersion(ctx, s.db)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{SchemaVersion: version, Rows: map[string]int{}}
	for _, table := range []string{"medications", "stock", "movements", "alerts", "schedules"} {
		var count int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", table, err)
		}
		stats.Rows[table] = count
	}
	stats.UnreadAlerts, err = s.Alerts.CountUnread(ctx)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func sqliteDSN(path string) string {
	pragmas := []string{pragmaForeignKeysOn, pragmaBusyTimeout, txLockImmediate}
	if path != memoryPath {
		pragmas = append(pragmas, pragmaJournalModeWAL)
	}
	return path + "?" + strings.Join(pragmas, "&")
}

func ensureDBPermissions(path string) error {
	if err := os.Chmod(path, 0o600); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("set db file permissions: %w", err)
		}
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
