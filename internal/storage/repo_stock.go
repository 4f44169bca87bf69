package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	stockColumns          = `id, medication_id, quantity, minimum, maximum, expiry_date, status, lot, entry_date, created_at, updated_at`
	stockColumnsQualified = `s.id, s.medication_id, s.quantity, s.minimum, s.maximum, s.expiry_date, s.status, s.lot, s.entry_date, s.created_at, s.updated_at`
)

type stockRepository struct {
	db    *sql.DB
	locks *keyedMutex
}

func (r *stockRepository) List(ctx context.Context, filter StockFilter) ([]StockRecord, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT ` + stockColumnsQualified + `, m.name
		FROM stock s
		INNER JOIN medications m ON m.id = s.medication_id
	`
	if !filter.IncludeInactive {
		query += ` WHERE m.active = 1 `
	}
	query += ` ORDER BY m.name ASC, s.id ASC `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	out := []StockRecord{}
	for rows.Next() {
		record, err := scanStockRecord(rows, true)
		if err != nil {
			return nil, fmt.Errorf("list stock: %w", err)
		}
		out = append(out, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stock: iterate: %w", err)
	}
	return out, nil
}

func (r *stockRepository) Get(ctx context.Context, id int64) (*StockRecord, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+stockColumnsQualified+`, m.name
		FROM stock s
		INNER JOIN medications m ON m.id = s.medication_id
		WHERE s.id = ?
	`, id)
	record, err := scanStockRecord(row, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return record, nil
}

// GetByMedication returns the medication's stock record. If duplicates exist
// the oldest row wins.
func (r *stockRepository) GetByMedication(ctx context.Context, medicationID int64) (*StockRecord, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}
	return stockByMedication(ctx, r.db, medicationID)
}

func (r *stockRepository) Create(ctx context.Context, record *StockRecord) (int64, error) {
	if r == nil || r.db == nil {
		return 0, ErrNotInitialized
	}
	if record == nil {
		return 0, fmt.Errorf("create stock: record is nil")
	}
	if record.MedicationID == 0 {
		return 0, fmt.Errorf("create stock: medication id is required")
	}
	return insertStock(ctx, r.db, record)
}

func (r *stockRepository) Update(ctx context.Context, id int64, patch StockPatch) error {
	if r == nil || r.db == nil {
		return ErrNotInitialized
	}
	if err := execUpdate(ctx, r.db, "stock", id, stockAssignments(patch)); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidPatch) {
			return err
		}
		return fmt.Errorf("update stock: %w", err)
	}
	return nil
}

// Upsert updates the medication's stock record, creating it with defaults
// when none exists yet.
func (r *stockRepository) Upsert(ctx context.Context, medicationID int64, patch StockPatch) (int64, error) {
	if r == nil || r.db == nil {
		return 0, ErrNotInitialized
	}

	unlock := r.locks.Lock(medicationID)
	defer unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upsert stock: begin tx: %w", err)
	}

	existing, err := stockByMedication(ctx, tx, medicationID)
	switch {
	case err == nil:
		if err := execUpdate(ctx, tx, "stock", existing.ID, stockAssignments(patch)); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("upsert stock: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("upsert stock: commit: %w", err)
		}
		return existing.ID, nil
	case errors.Is(err, ErrNotFound):
	default:
		_ = tx.Rollback()
		return 0, fmt.Errorf("upsert stock: %w", err)
	}

	record := &StockRecord{MedicationID: medicationID, Minimum: DefaultMinimum, Maximum: DefaultMaximum}
	applyStockPatch(record, patch)
	id, err := insertStock(ctx, tx, record)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("upsert stock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upsert stock: commit: %w", err)
	}
	return id, nil
}

// Adjust applies one incoming or outgoing movement to the medication's stock
// and records it, atomically. An outgoing movement larger than the current
// quantity, or against a medication without stock, returns
// ErrInsufficientStock and changes nothing.
func (r *stockRepository) Adjust(ctx context.Context, medicationID int64, adj Adjustment) (*StockRecord, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}
	if !adj.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown movement kind %q", ErrInvalidPatch, adj.Kind)
	}
	if adj.Quantity <= 0 {
		return nil, fmt.Errorf("%w: movement quantity must be positive", ErrInvalidPatch)
	}
	if adj.Date.IsZero() {
		adj.Date = nowUTC()
	}

	unlock := r.locks.Lock(medicationID)
	defer unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("adjust stock: begin tx: %w", err)
	}

	record, err := stockByMedication(ctx, tx, medicationID)
	switch {
	case errors.Is(err, ErrNotFound):
		if adj.Kind == MovementOut {
			_ = tx.Rollback()
			return nil, ErrInsufficientStock
		}
		entry := Date(adj.Date)
		record = &StockRecord{
			MedicationID: medicationID,
			Quantity:     adj.Quantity,
			Minimum:      DefaultMinimum,
			Maximum:      DefaultMaximum,
			ExpiryDate:   adj.ExpiryDate,
			Lot:          adj.Lot,
			EntryDate:    &entry,
		}
		if _, err := insertStock(ctx, tx, record); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("adjust stock: %w", err)
		}
	case err != nil:
		_ = tx.Rollback()
		return nil, fmt.Errorf("adjust stock: %w", err)
	default:
		if adj.Kind == MovementOut && adj.Quantity > record.Quantity {
			_ = tx.Rollback()
			return nil, ErrInsufficientStock
		}
		patch := StockPatch{}
		quantity := record.Quantity + adj.Quantity
		if adj.Kind == MovementOut {
			quantity = record.Quantity - adj.Quantity
		} else {
			entry := Date(adj.Date)
			patch.EntryDate = &entry
			patch.ExpiryDate = adj.ExpiryDate
			if adj.Lot != "" {
				patch.Lot = &adj.Lot
			}
		}
		status := StockStatus(quantity, record.Minimum, record.Maximum)
		patch.Quantity = &quantity
		patch.Status = &status
		if err := execUpdate(ctx, tx, "stock", record.ID, stockAssignments(patch)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("adjust stock: %w", err)
		}
	}

	if _, err := appendMovement(ctx, tx, &Movement{
		MedicationID: medicationID,
		Kind:         adj.Kind,
		Quantity:     adj.Quantity,
		Date:         adj.Date,
		Actor:        adj.Actor,
		Reason:       adj.Reason,
	}); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("adjust stock: %w", err)
	}

	updated, err := stockByMedication(ctx, tx, medicationID)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("adjust stock: reload: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("adjust stock: commit: %w", err)
	}
	return updated, nil
}

// StockStatus derives the status label from quantity and thresholds.
func StockStatus(quantity, minimum, maximum int) string {
	switch {
	case quantity <= minimum:
		return StockStatusLow
	case maximum > 0 && quantity > maximum:
		return StockStatusExcess
	default:
		return StockStatusNormal
	}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func stockByMedication(ctx context.Context, db queryRower, medicationID int64) (*StockRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+stockColumns+`
		FROM stock
		WHERE medication_id = ?
		ORDER BY id ASC
		LIMIT 1
	`, medicationID)
	record, err := scanStockRecord(row, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get stock by medication: %w", err)
	}
	return record, nil
}

func insertStock(ctx context.Context, db execer, record *StockRecord) (int64, error) {
	if record.Minimum == 0 && record.Maximum == 0 {
		record.Minimum = DefaultMinimum
		record.Maximum = DefaultMaximum
	}
	if record.Status == "" {
		record.Status = StockStatus(record.Quantity, record.Minimum, record.Maximum)
	}
	now := nowUTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	result, err := db.ExecContext(ctx, `
		INSERT INTO stock(medication_id, quantity, minimum, maximum, expiry_date, status, lot, entry_date, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.MedicationID, record.Quantity, record.Minimum, record.Maximum, nullDate(record.ExpiryDate),
		record.Status, nullString(record.Lot), nullDate(record.EntryDate), fmtTime(now), fmtTime(now))
	if err != nil {
		return 0, fmt.Errorf("insert stock: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert stock: last insert id: %w", err)
	}
	record.ID = id
	return id, nil
}

func stockAssignments(patch StockPatch) []assignment {
	sets := []assignment{}
	if patch.Quantity != nil {
		sets = append(sets, assignment{"quantity", *patch.Quantity})
	}
	if patch.Minimum != nil {
		sets = append(sets, assignment{"minimum", *patch.Minimum})
	}
	if patch.Maximum != nil {
		sets = append(sets, assignment{"maximum", *patch.Maximum})
	}
	if patch.ExpiryDate != nil {
		sets = append(sets, assignment{"expiry_date", nullDate(patch.ExpiryDate)})
	}
	if patch.Status != nil {
		sets = append(sets, assignment{"status", *patch.Status})
	}
	if patch.Lot != nil {
		sets = append(sets, assignment{"lot", nullString(*patch.Lot)})
	}
	if patch.EntryDate != nil {
		sets = append(sets, assignment{"entry_date", nullDate(patch.EntryDate)})
	}
	return sets
}

func applyStockPatch(record *StockRecord, patch StockPatch) {
	if patch.Quantity != nil {
		record.Quantity = *patch.Quantity
	}
	if patch.Minimum != nil {
		record.Minimum = *patch.Minimum
	}
	if patch.Maximum != nil {
		record.Maximum = *patch.Maximum
	}
	if patch.ExpiryDate != nil {
		record.ExpiryDate = patch.ExpiryDate
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.Lot != nil {
		record.Lot = *patch.Lot
	}
	if patch.EntryDate != nil {
		record.EntryDate = patch.EntryDate
	}
}

func scanStockRecord(scanner rowScanner, withName bool) (*StockRecord, error) {
	var (
		record    StockRecord
		expiry    sql.NullString
		lot       sql.NullString
		entry     sql.NullString
		createdAt string
		updatedAt string
	)

	dest := []any{&record.ID, &record.MedicationID, &record.Quantity, &record.Minimum, &record.Maximum, &expiry, &record.Status, &lot, &entry, &createdAt, &updatedAt}
	if withName {
		dest = append(dest, &record.MedicationName)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	record.Lot = lot.String
	if record.ExpiryDate, err = parseNullableDate(expiry); err != nil {
		return nil, err
	}
	if record.EntryDate, err = parseNullableDate(entry); err != nil {
		return nil, err
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &record, nil
}
