package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	dateLayout = "2006-01-02"
	// Fixed-width fractions keep stored timestamps in text order.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

// Date truncates t to its calendar date in t's location, returned at UTC
// midnight so dates compare and subtract cleanly.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatDate(*t), Valid: true}
}

// parseNullableDate also accepts full timestamps, which older rows may hold.
func parseNullableDate(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	if t, err := ParseDate(raw.String); err == nil {
		return &t, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	d := Date(t)
	return &d, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

type assignment struct {
	column string
	value  any
}

// updatableColumns is the allow-list of columns a patch may write.
var updatableColumns = map[string]map[string]struct{}{
	"medications": columnSet("name", "description", "dosage", "manufacturer", "price", "category", "active"),
	"stock":       columnSet("quantity", "minimum", "maximum", "expiry_date", "status", "lot", "entry_date"),
	"schedules":   columnSet("time", "weekdays", "active", "notes"),
}

func columnSet(columns ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		out[column] = struct{}{}
	}
	return out
}

// buildUpdate renders an UPDATE for the given assignments plus a refreshed
// updated_at. Every column must be on the table's allow-list. Callers handle
// an empty assignment list themselves; see execUpdate.
func buildUpdate(table string, id int64, sets []assignment) (string, []any, error) {
	allowed, ok := updatableColumns[table]
	if !ok {
		return "", nil, fmt.Errorf("%w: table %q is not updatable", ErrInvalidPatch, table)
	}

	clauses := make([]string, 0, len(sets)+1)
	args := make([]any, 0, len(sets)+2)
	for _, set := range sets {
		if _, ok := allowed[set.column]; !ok {
			return "", nil, fmt.Errorf("%w: column %q on %s", ErrInvalidPatch, set.column, table)
		}
		clauses = append(clauses, set.column+" = ?")
		args = append(args, set.value)
	}
	clauses = append(clauses, "updated_at = ?")
	args = append(args, fmtTime(nowUTC()), id)

	query := `UPDATE ` + table + ` SET ` + strings.Join(clauses, ", ") + ` WHERE id = ?`
	return query, args, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryExecer interface {
	execer
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execUpdate applies sets to one row. An empty patch writes nothing and only
// checks that the row exists.
func execUpdate(ctx context.Context, db queryExecer, table string, id int64, sets []assignment) error {
	if len(sets) == 0 {
		return rowExists(ctx, db, table, id)
	}
	query, args, err := buildUpdate(table, id, sets)
	if err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: rows affected: %w", table, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func rowExists(ctx context.Context, db queryExecer, table string, id int64) error {
	if _, ok := updatableColumns[table]; !ok {
		return fmt.Errorf("%w: table %q is not updatable", ErrInvalidPatch, table)
	}
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// keyedMutex serializes work per key, e.g. stock writes per medication.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[int64]*keyedLock{}
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
