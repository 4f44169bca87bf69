package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const alertColumnsQualified = `a.id, a.medication_id, a.kind, a.message, a.date, a.read, a.created_at, COALESCE(m.name, '')`

type alertRepository struct {
	db *sql.DB
}

func (r *alertRepository) Create(ctx context.Context, alert *Alert) (int64, error) {
	if r == nil || r.db == nil {
		return 0, ErrNotInitialized
	}
	if err := prepareAlert(alert); err != nil {
		return 0, fmt.Errorf("create alert: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts(medication_id, kind, message, date, read, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, nullID(alert.MedicationID), string(alert.Kind), alert.Message, fmtTime(alert.Date), boolToInt(alert.Read), fmtTime(alert.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("create alert: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create alert: last insert id: %w", err)
	}
	alert.ID = id
	return id, nil
}

// CreateIfNoUnread inserts the alert unless an unread alert of the same kind
// already exists for the same medication. The check and the insert are one
// statement, so concurrent callers cannot both insert.
func (r *alertRepository) CreateIfNoUnread(ctx context.Context, alert *Alert) (int64, bool, error) {
	return r.createConditional(ctx, alert, nil)
}

// CreateIfNotRaisedSince is CreateIfNoUnread that also skips when an alert of
// that kind for the medication, read or not, was created at or after since.
// Passing the time the underlying condition last changed keeps an
// acknowledged alert quiet until the condition changes again.
func (r *alertRepository) CreateIfNotRaisedSince(ctx context.Context, alert *Alert, since time.Time) (int64, bool, error) {
	return r.createConditional(ctx, alert, &since)
}

func (r *alertRepository) createConditional(ctx context.Context, alert *Alert, since *time.Time) (int64, bool, error) {
	if r == nil || r.db == nil {
		return 0, false, ErrNotInitialized
	}
	if err := prepareAlert(alert); err != nil {
		return 0, false, fmt.Errorf("create alert: %w", err)
	}
	alert.Read = false

	medicationID := nullID(alert.MedicationID)
	query := `
		INSERT INTO alerts(medication_id, kind, message, date, read, created_at)
		SELECT ?, ?, ?, ?, 0, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM alerts
			WHERE medication_id IS ? AND kind = ? AND read = 0
		)
	`
	args := []any{medicationID, string(alert.Kind), alert.Message, fmtTime(alert.Date), fmtTime(alert.CreatedAt),
		medicationID, string(alert.Kind)}
	if since != nil && !since.IsZero() {
		query += `
		AND NOT EXISTS (
			SELECT 1 FROM alerts
			WHERE medication_id IS ? AND kind = ?
			AND julianday(created_at) >= julianday(?)
		)
		`
		args = append(args, medicationID, string(alert.Kind), fmtTime(*since))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, false, fmt.Errorf("create alert: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("create alert: rows affected: %w", err)
	}
	if count == 0 {
		return 0, false, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("create alert: last insert id: %w", err)
	}
	alert.ID = id
	return id, true, nil
}

func (r *alertRepository) Get(ctx context.Context, id int64) (*Alert, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+alertColumnsQualified+`
		FROM alerts a
		LEFT JOIN medications m ON m.id = a.medication_id
		WHERE a.id = ?
	`, id)
	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

// List returns alerts newest first.
func (r *alertRepository) List(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT ` + alertColumnsQualified + `
		FROM alerts a
		LEFT JOIN medications m ON m.id = a.medication_id
		WHERE 1=1
	`
	args := []any{}
	if filter.UnreadOnly {
		query += ` AND a.read = 0 `
	}
	if filter.MedicationID > 0 {
		query += ` AND a.medication_id = ? `
		args = append(args, filter.MedicationID)
	}
	if filter.Kind != "" {
		query += ` AND a.kind = ? `
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY julianday(a.date) DESC, a.id DESC `
	if filter.Limit > 0 {
		query += ` LIMIT ? `
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	out := []Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("list alerts: %w", err)
		}
		out = append(out, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alerts: iterate: %w", err)
	}
	return out, nil
}

func (r *alertRepository) CountUnread(ctx context.Context) (int, error) {
	if r == nil || r.db == nil {
		return 0, ErrNotInitialized
	}
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE read = 0`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread alerts: %w", err)
	}
	return count, nil
}

func (r *alertRepository) MarkRead(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return ErrNotInitialized
	}

	result, err := r.db.ExecContext(ctx, `UPDATE alerts SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark alert read: rows affected: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *alertRepository) MarkAllRead(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, ErrNotInitialized
	}

	result, err := r.db.ExecContext(ctx, `UPDATE alerts SET read = 1 WHERE read = 0`)
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read: rows affected: %w", err)
	}
	return count, nil
}

func prepareAlert(alert *Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is nil")
	}
	if alert.Kind == "" {
		return fmt.Errorf("%w: alert kind is required", ErrInvalidPatch)
	}
	if alert.Message == "" {
		return fmt.Errorf("%w: alert message is required", ErrInvalidPatch)
	}
	now := nowUTC()
	if alert.Date.IsZero() {
		alert.Date = now
	}
	alert.CreatedAt = now
	return nil
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func scanAlert(scanner rowScanner) (*Alert, error) {
	var (
		alert        Alert
		medicationID sql.NullInt64
		kind         string
		date         string
		read         int
		createdAt    string
	)

	if err := scanner.Scan(&alert.ID, &medicationID, &kind, &alert.Message, &date, &read, &createdAt, &alert.MedicationName); err != nil {
		return nil, err
	}

	var err error
	if medicationID.Valid {
		id := medicationID.Int64
		alert.MedicationID = &id
	}
	alert.Kind = AlertKind(kind)
	alert.Read = read != 0
	if alert.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if alert.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &alert, nil
}
