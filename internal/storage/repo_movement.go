package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const movementColumnsQualified = `mv.id, mv.medication_id, mv.kind, mv.quantity, mv.date, mv.actor, mv.reason, mv.created_at, m.name`

type movementRepository struct {
	db *sql.DB
}

func (r *movementRepository) Append(ctx context.Context, movement *Movement) (int64, error) {
	if r == nil || r.db == nil {
		return 0, ErrNotInitialized
	}
	if movement == nil {
		return 0, fmt.Errorf("append movement: movement is nil")
	}
	if !movement.Kind.Valid() {
		return 0, fmt.Errorf("%w: unknown movement kind %q", ErrInvalidPatch, movement.Kind)
	}
	if movement.Quantity <= 0 {
		return 0, fmt.Errorf("%w: movement quantity must be positive", ErrInvalidPatch)
	}
	return appendMovement(ctx, r.db, movement)
}

func (r *movementRepository) Get(ctx context.Context, id int64) (*Movement, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+movementColumnsQualified+`
		FROM movements mv
		INNER JOIN medications m ON m.id = mv.medication_id
		WHERE mv.id = ?
	`, id)
	movement, err := scanMovement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return movement, nil
}

// List returns movements newest first.
func (r *movementRepository) List(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT ` + movementColumnsQualified + `
		FROM movements mv
		INNER JOIN medications m ON m.id = mv.medication_id
		WHERE 1=1
	`
	args := []any{}
	if filter.MedicationID > 0 {
		query += ` AND mv.medication_id = ? `
		args = append(args, filter.MedicationID)
	}
	if filter.Kind != "" {
		query += ` AND mv.kind = ? `
		args = append(args, string(filter.Kind))
	}
	if filter.Since != nil {
		query += ` AND julianday(mv.date) >= julianday(?) `
		args = append(args, fmtTime(*filter.Since))
	}
	query += ` ORDER BY julianday(mv.date) DESC, mv.id DESC `
	if filter.Limit > 0 {
		query += ` LIMIT ? `
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	out := []Movement{}
	for rows.Next() {
		movement, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("list movements: %w", err)
		}
		out = append(out, *movement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list movements: iterate: %w", err)
	}
	return out, nil
}

func appendMovement(ctx context.Context, db execer, movement *Movement) (int64, error) {
	now := nowUTC()
	if movement.Date.IsZero() {
		movement.Date = now
	}
	movement.CreatedAt = now

	result, err := db.ExecContext(ctx, `
		INSERT INTO movements(medication_id, kind, quantity, date, actor, reason, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, movement.MedicationID, string(movement.Kind), movement.Quantity, fmtTime(movement.Date),
		nullString(movement.Actor), nullString(movement.Reason), fmtTime(now))
	if err != nil {
		return 0, fmt.Errorf("append movement: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append movement: last insert id: %w", err)
	}
	movement.ID = id
	return id, nil
}

func scanMovement(scanner rowScanner) (*Movement, error) {
	var (
		movement  Movement
		kind      string
		date      string
		actor     sql.NullString
		reason    sql.NullString
		createdAt string
	)

	if err := scanner.Scan(&movement.ID, &movement.MedicationID, &kind, &movement.Quantity, &date, &actor, &reason, &createdAt, &movement.MedicationName); err != nil {
		return nil, err
	}

	var err error
	movement.Kind = MovementKind(kind)
	movement.Actor = actor.String
	movement.Reason = reason.String
	if movement.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if movement.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &movement, nil
}
