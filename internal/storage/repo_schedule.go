package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const scheduleColumnsQualified = `sc.id, sc.medication_id, sc.time, sc.weekdays, sc.active, sc.notes, sc.created_at, sc.updated_at`

type scheduleRepository struct {
	db *sql.DB
}

func (r *scheduleRepository) List(ctx context.Context, filter ScheduleFilter) ([]Schedule, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT ` + scheduleColumnsQualified + `, m.name
		FROM schedules sc
		INNER JOIN medications m ON m.id = sc.medication_id
		WHERE 1=1
	`
	args := []any{}
	if filter.MedicationID > 0 {
		query += ` AND sc.medication_id = ? `
		args = append(args, filter.MedicationID)
	}
	if filter.ActiveOnly {
		query += ` AND sc.active = 1 `
	}
	query += ` ORDER BY sc.time ASC, sc.id ASC `

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	out := []Schedule{}
	for rows.Next() {
		schedule, err := scanSchedule(rows, true)
		if err != nil {
			return nil, fmt.Errorf("list schedules: %w", err)
		}
		out = append(out, *schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list schedules: iterate: %w", err)
	}
	return out, nil
}

func (r *scheduleRepository) Get(ctx context.Context, id int64) (*Schedule, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+scheduleColumnsQualified+`, m.name
		FROM schedules sc
		INNER JOIN medications m ON m.id = sc.medication_id
		WHERE sc.id = ?
	`, id)
	schedule, err := scanSchedule(row, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return schedule, nil
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *Schedule) (int64, error) {
	if r == nil || r.db == nil {
		return 0, ErrNotInitialized
	}
	if schedule == nil {
		return 0, fmt.Errorf("create schedule: schedule is nil")
	}

	now := nowUTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	schedule.Weekdays = NewWeekdaySet(schedule.Weekdays...)

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO schedules(medication_id, time, weekdays, active, notes, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, schedule.MedicationID, schedule.Time, encodeWeekdays(schedule.Weekdays), boolToInt(schedule.Active),
		nullString(schedule.Notes), fmtTime(now), fmtTime(now))
	if err != nil {
		return 0, fmt.Errorf("create schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create schedule: last insert id: %w", err)
	}
	schedule.ID = id
	return id, nil
}

func (r *scheduleRepository) Update(ctx context.Context, id int64, patch SchedulePatch) error {
	if r == nil || r.db == nil {
		return ErrNotInitialized
	}

	sets := []assignment{}
	if patch.Time != nil {
		sets = append(sets, assignment{"time", *patch.Time})
	}
	if patch.Weekdays != nil {
		sets = append(sets, assignment{"weekdays", encodeWeekdays(*patch.Weekdays)})
	}
	if patch.Active != nil {
		sets = append(sets, assignment{"active", boolToInt(*patch.Active)})
	}
	if patch.Notes != nil {
		sets = append(sets, assignment{"notes", nullString(*patch.Notes)})
	}

	if err := execUpdate(ctx, r.db, "schedules", id, sets); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidPatch) {
			return err
		}
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.Update(ctx, id, SchedulePatch{Active: &active})
}

// Delete removes the row. Schedules are not soft-deleted.
func (r *scheduleRepository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return ErrNotInitialized
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schedule: rows affected: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// scanSchedule decodes the weekday column from either on-disk encoding.
func scanSchedule(scanner rowScanner, withName bool) (*Schedule, error) {
	var (
		schedule  Schedule
		weekdays  sql.NullString
		active    int
		notes     sql.NullString
		createdAt string
		updatedAt string
	)

	dest := []any{&schedule.ID, &schedule.MedicationID, &schedule.Time, &weekdays, &active, &notes, &createdAt, &updatedAt}
	if withName {
		dest = append(dest, &schedule.MedicationName)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	schedule.Weekdays = NormalizeWeekdays([]byte(weekdays.String))
	schedule.Active = active != 0
	schedule.Notes = notes.String
	if schedule.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if schedule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &schedule, nil
}
