package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const medicationColumns = `id, name, description, dosage, manufacturer, price, category, active, created_at, updated_at`

type medicationRepository struct {
	db *sql.DB
}

func (r *medicationRepository) List(ctx context.Context, filter MedicationFilter) ([]Medication, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}

	query := `SELECT ` + medicationColumns + ` FROM medications WHERE 1=1 `
	args := []any{}
	if !filter.IncludeInactive {
		query += ` AND active = 1 `
	}
	if filter.Category != "" {
		query += ` AND category = ? `
		args = append(args, filter.Category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query += ` AND (name LIKE ? OR description LIKE ? OR manufacturer LIKE ?) `
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	query += ` ORDER BY name ASC, id ASC `

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()

	out := []Medication{}
	for rows.Next() {
		medication, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("list medications: %w", err)
		}
		out = append(out, *medication)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list medications: iterate: %w", err)
	}
	return out, nil
}

// Get returns the medication whether or not it is still active.
func (r *medicationRepository) Get(ctx context.Context, id int64) (*Medication, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+medicationColumns+` FROM medications WHERE id = ?`, id)
	medication, err := scanMedication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get medication: %w", err)
	}
	return medication, nil
}

func (r *medicationRepository) Create(ctx context.Context, medication *Medication) (int64, error) {
	if r == nil || r.db == nil {
		return 0, ErrNotInitialized
	}
	if medication == nil {
		return 0, fmt.Errorf("create medication: medication is nil")
	}
	return insertMedication(ctx, r.db, medication)
}

// CreateWithStock inserts the medication, its stock record and, when initial
// is set, the movement that booked the starting quantity. Either all rows are
// written or none are.
func (r *medicationRepository) CreateWithStock(ctx context.Context, medication *Medication, stock *StockRecord, initial *Movement) (*StockRecord, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}
	if medication == nil || stock == nil {
		return nil, fmt.Errorf("create medication: medication and stock are required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create medication: begin tx: %w", err)
	}
	fail := func(err error) (*StockRecord, error) {
		_ = tx.Rollback()
		medication.ID = 0
		return nil, err
	}

	id, err := insertMedication(ctx, tx, medication)
	if err != nil {
		return fail(err)
	}
	stock.MedicationID = id
	if _, err := insertStock(ctx, tx, stock); err != nil {
		return fail(fmt.Errorf("create medication: %w", err))
	}
	if initial != nil {
		initial.MedicationID = id
		initial.Kind = MovementIn
		initial.Quantity = stock.Quantity
		if _, err := appendMovement(ctx, tx, initial); err != nil {
			return fail(fmt.Errorf("create medication: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(fmt.Errorf("create medication: commit: %w", err))
	}
	stock.MedicationName = medication.Name
	return stock, nil
}

func insertMedication(ctx context.Context, db execer, medication *Medication) (int64, error) {
	now := nowUTC()
	medication.CreatedAt = now
	medication.UpdatedAt = now
	medication.Active = true

	result, err := db.ExecContext(ctx, `
		INSERT INTO medications(name, description, dosage, manufacturer, price, category, active, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, medication.Name, nullString(medication.Description), medication.Dosage, nullString(medication.Manufacturer),
		medication.Price.InexactFloat64(), nullString(medication.Category), fmtTime(now), fmtTime(now))
	if err != nil {
		return 0, fmt.Errorf("create medication: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create medication: last insert id: %w", err)
	}
	medication.ID = id
	return id, nil
}

func (r *medicationRepository) Update(ctx context.Context, id int64, patch MedicationPatch) error {
	if r == nil || r.db == nil {
		return ErrNotInitialized
	}

	sets := []assignment{}
	if patch.Name != nil {
		sets = append(sets, assignment{"name", *patch.Name})
	}
	if patch.Description != nil {
		sets = append(sets, assignment{"description", nullString(*patch.Description)})
	}
	if patch.Dosage != nil {
		sets = append(sets, assignment{"dosage", *patch.Dosage})
	}
	if patch.Manufacturer != nil {
		sets = append(sets, assignment{"manufacturer", nullString(*patch.Manufacturer)})
	}
	if patch.Price != nil {
		sets = append(sets, assignment{"price", patch.Price.InexactFloat64()})
	}
	if patch.Category != nil {
		sets = append(sets, assignment{"category", nullString(*patch.Category)})
	}
	if patch.Active != nil {
		sets = append(sets, assignment{"active", boolToInt(*patch.Active)})
	}

	if err := execUpdate(ctx, r.db, "medications", id, sets); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidPatch) {
			return err
		}
		return fmt.Errorf("update medication: %w", err)
	}
	return nil
}

// Delete is a soft delete: the row stays and only the active flag clears.
func (r *medicationRepository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return ErrNotInitialized
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET active = 0, updated_at = ?
		WHERE id = ? AND active = 1
	`, fmtTime(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete medication: rows affected: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWithStockAndSchedules joins each active medication with its stock
// record and active schedules using one query per table instead of one per
// medication.
func (r *medicationRepository) ListWithStockAndSchedules(ctx context.Context) ([]MedicationDetail, error) {
	medications, err := r.List(ctx, MedicationFilter{})
	if err != nil {
		return nil, err
	}

	stockByMedication := map[int64]*StockRecord{}
	stockRows, err := r.db.QueryContext(ctx, `
		SELECT `+stockColumnsQualified+`, m.name
		FROM stock s
		INNER JOIN medications m ON m.id = s.medication_id
		WHERE m.active = 1
		ORDER BY s.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list medication details: query stock: %w", err)
	}
	defer stockRows.Close()
	for stockRows.Next() {
		record, err := scanStockRecord(stockRows, true)
		if err != nil {
			return nil, fmt.Errorf("list medication details: %w", err)
		}
		if _, exists := stockByMedication[record.MedicationID]; !exists {
			stockByMedication[record.MedicationID] = record
		}
	}
	if err := stockRows.Err(); err != nil {
		return nil, fmt.Errorf("list medication details: iterate stock: %w", err)
	}

	schedulesByMedication := map[int64][]Schedule{}
	scheduleRows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduleColumnsQualified+`, m.name
		FROM schedules sc
		INNER JOIN medications m ON m.id = sc.medication_id
		WHERE m.active = 1 AND sc.active = 1
		ORDER BY sc.time ASC, sc.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list medication details: query schedules: %w", err)
	}
	defer scheduleRows.Close()
	for scheduleRows.Next() {
		schedule, err := scanSchedule(scheduleRows, true)
		if err != nil {
			return nil, fmt.Errorf("list medication details: %w", err)
		}
		schedulesByMedication[schedule.MedicationID] = append(schedulesByMedication[schedule.MedicationID], *schedule)
	}
	if err := scheduleRows.Err(); err != nil {
		return nil, fmt.Errorf("list medication details: iterate schedules: %w", err)
	}

	out := make([]MedicationDetail, 0, len(medications))
	for _, medication := range medications {
		schedules := schedulesByMedication[medication.ID]
		if schedules == nil {
			schedules = []Schedule{}
		}
		out = append(out, MedicationDetail{
			Medication: medication,
			Stock:      stockByMedication[medication.ID],
			Schedules:  schedules,
		})
	}
	return out, nil
}

func scanMedication(scanner rowScanner) (*Medication, error) {
	var (
		medication   Medication
		description  sql.NullString
		manufacturer sql.NullString
		category     sql.NullString
		price        float64
		active       int
		createdAt    string
		updatedAt    string
	)

	if err := scanner.Scan(&medication.ID, &medication.Name, &description, &medication.Dosage, &manufacturer, &price, &category, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	medication.Description = description.String
	medication.Manufacturer = manufacturer.String
	medication.Category = category.String
	medication.Price = decimal.NewFromFloat(price)
	medication.Active = active != 0
	if medication.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if medication.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &medication, nil
}
