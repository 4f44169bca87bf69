package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
)

const schemaVersionMetaKey = "schema_version"

type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx *sql.Tx) error
}

var defaultMigrations = []Migration{
	{
		Version:     1,
		Description: "create entity tables",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			statements := []string{
				`CREATE TABLE IF NOT EXISTS medications (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					description TEXT,
					dosage TEXT NOT NULL,
					manufacturer TEXT,
					price REAL NOT NULL DEFAULT 0,
					category TEXT,
					active INTEGER NOT NULL DEFAULT 1,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS stock (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					medication_id INTEGER NOT NULL,
					quantity INTEGER NOT NULL DEFAULT 0,
					minimum INTEGER NOT NULL DEFAULT 10,
					maximum INTEGER NOT NULL DEFAULT 100,
					expiry_date TEXT,
					status TEXT NOT NULL DEFAULT 'normal',
					lot TEXT,
					entry_date TEXT,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					FOREIGN KEY(medication_id) REFERENCES medications(id) ON DELETE CASCADE
				)`,
				`CREATE TABLE IF NOT EXISTS movements (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					medication_id INTEGER NOT NULL,
					kind TEXT NOT NULL,
					quantity INTEGER NOT NULL,
					date TEXT NOT NULL,
					actor TEXT,
					reason TEXT,
					created_at TEXT NOT NULL,
					FOREIGN KEY(medication_id) REFERENCES medications(id) ON DELETE CASCADE
				)`,
				`CREATE TABLE IF NOT EXISTS alerts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					medication_id INTEGER,
					kind TEXT NOT NULL,
					message TEXT NOT NULL,
					date TEXT NOT NULL,
					read INTEGER NOT NULL DEFAULT 0,
					created_at TEXT NOT NULL,
					FOREIGN KEY(medication_id) REFERENCES medications(id) ON DELETE CASCADE
				)`,
				`CREATE TABLE IF NOT EXISTS schedules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					medication_id INTEGER NOT NULL,
					time TEXT NOT NULL,
					weekdays TEXT NOT NULL DEFAULT '[]',
					active INTEGER NOT NULL DEFAULT 1,
					notes TEXT,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					FOREIGN KEY(medication_id) REFERENCES medications(id) ON DELETE CASCADE
				)`,
			}
			for _, stmt := range statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("apply migration v1 statement: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "add lookup indexes",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			statements := []string{
				`CREATE INDEX IF NOT EXISTS idx_medications_active_name ON medications(active, name)`,
				`CREATE INDEX IF NOT EXISTS idx_stock_medication_id ON stock(medication_id)`,
				`CREATE INDEX IF NOT EXISTS idx_movements_medication_date ON movements(medication_id, date)`,
				`CREATE INDEX IF NOT EXISTS idx_alerts_medication_kind_read ON alerts(medication_id, kind, read)`,
				`CREATE INDEX IF NOT EXISTS idx_schedules_medication_id ON schedules(medication_id)`,
			}
			for _, stmt := range statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("apply migration v2 statement: %w", err)
				}
			}
			return nil
		},
	},
}

func DefaultMigrations() []Migration {
	out := make([]Migration, len(defaultMigrations))
	copy(out, defaultMigrations)
	return out
}

func CurrentSchemaVersion() int {
	return maxMigrationVersion(defaultMigrations)
}

// PrepareSchema brings the schema up to date. It only creates what is
// missing, so it is safe to call on every start.
func PrepareSchema(ctx context.Context, db *sql.DB) error {
	return RunMigrations(ctx, db, DefaultMigrations())
}

func RunMigrations(ctx context.Context, db *sql.DB, migrations []Migration) error {
	if db == nil {
		return fmt.Errorf("run migrations: %w", ErrNotInitialized)
	}

	if err := ensureMigrationTables(ctx, db); err != nil {
		return err
	}

	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	current, err := readSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	maxVersion := maxMigrationVersion(ordered)
	if current > maxVersion {
		return fmt.Errorf("%w: db=%d code=%d", ErrSchemaTooNew, current, maxVersion)
	}

	for _, migration := range ordered {
		if migration.Version <= current {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", migration.Version, err)
		}

		if err := migration.Up(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d (%s): %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO schema_migrations(version, applied_at) VALUES (?, ?)`, migration.Version, fmtTime(nowUTC())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record schema migration v%d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO store_meta(key, value) VALUES(?, ?)`, schemaVersionMetaKey, strconv.Itoa(migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("update schema version v%d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", migration.Version, err)
		}
	}

	return nil
}

func ensureMigrationTables(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`,
		`INSERT OR IGNORE INTO store_meta(key, value) VALUES('` + schemaVersionMetaKey + `', '0')`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure migration tables: %w", err)
		}
	}
	return nil
}

func readSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var versionStr string
	if err := db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, schemaVersionMetaKey).Scan(&versionStr); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", versionStr, err)
	}
	return version, nil
}

func maxMigrationVersion(migrations []Migration) int {
	max := 0
	for _, migration := range migrations {
		if migration.Version > max {
			max = migration.Version
		}
	}
	return max
}
