package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

type demoMedication struct {
	medication Medication
	quantity   int
	minimum    int
	maximum    int
	expiryDays int
	lot        string
	schedules  []Schedule
}

func demoMedications() []demoMedication {
	return []demoMedication{
		{
			medication: Medication{Name: "Losartana", Description: "Anti-hipertensivo", Dosage: "50mg", Manufacturer: "EMS", Price: decimal.RequireFromString("18.90"), Category: "cardiovascular"},
			quantity:   28, minimum: 10, maximum: 60, expiryDays: 180, lot: "LS2301",
			schedules: []Schedule{
				{Time: "08:00", Weekdays: NewWeekdaySet(Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday), Active: true, Notes: "Em jejum"},
			},
		},
		{
			medication: Medication{Name: "Metformina", Description: "Antidiabético", Dosage: "850mg", Manufacturer: "Medley", Price: decimal.RequireFromString("12.50"), Category: "endocrino"},
			quantity:   8, minimum: 10, maximum: 90, expiryDays: 90, lot: "MT0457",
			schedules: []Schedule{
				{Time: "07:30", Weekdays: NewWeekdaySet(Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday), Active: true, Notes: "Após o café"},
				{Time: "19:30", Weekdays: NewWeekdaySet(Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday), Active: true, Notes: "Após o jantar"},
			},
		},
		{
			medication: Medication{Name: "Dipirona", Description: "Analgésico e antitérmico", Dosage: "500mg", Manufacturer: "Neo Química", Price: decimal.RequireFromString("6.75"), Category: "analgesico"},
			quantity:   20, minimum: 5, maximum: 40, expiryDays: 20, lot: "DP7781",
		},
	}
}

// SeedDemo inserts demonstration data when the medications table is empty.
// It reports whether anything was written.
func SeedDemo(ctx context.Context, db *sql.DB) (bool, error) {
	if db == nil {
		return false, ErrNotInitialized
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("seed demo data: begin tx: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM medications`).Scan(&count); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("seed demo data: count medications: %w", err)
	}
	if count > 0 {
		_ = tx.Rollback()
		return false, nil
	}

	now := nowUTC()
	today := Date(now)
	for _, demo := range demoMedications() {
		medication := demo.medication
		result, err := tx.ExecContext(ctx, `
			INSERT INTO medications(name, description, dosage, manufacturer, price, category, active, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, 1, ?, ?)
		`, medication.Name, nullString(medication.Description), medication.Dosage, nullString(medication.Manufacturer),
			medication.Price.InexactFloat64(), nullString(medication.Category), fmtTime(now), fmtTime(now))
		if err != nil {
			_ = tx.Rollback()
			return false, fmt.Errorf("seed demo data: insert medication %q: %w", medication.Name, err)
		}
		medicationID, err := result.LastInsertId()
		if err != nil {
			_ = tx.Rollback()
			return false, fmt.Errorf("seed demo data: last insert id: %w", err)
		}

		expiry := today.AddDate(0, 0, demo.expiryDays)
		if _, err := insertStock(ctx, tx, &StockRecord{
			MedicationID: medicationID,
			Quantity:     demo.quantity,
			Minimum:      demo.minimum,
			Maximum:      demo.maximum,
			ExpiryDate:   &expiry,
			Lot:          demo.lot,
			EntryDate:    &today,
		}); err != nil {
			_ = tx.Rollback()
			return false, fmt.Errorf("seed demo data: %w", err)
		}

		for _, schedule := range demo.schedules {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO schedules(medication_id, time, weekdays, active, notes, created_at, updated_at)
				VALUES(?, ?, ?, ?, ?, ?, ?)
			`, medicationID, schedule.Time, encodeWeekdays(schedule.Weekdays), boolToInt(schedule.Active),
				nullString(schedule.Notes), fmtTime(now), fmtTime(now)); err != nil {
				_ = tx.Rollback()
				return false, fmt.Errorf("seed demo data: insert schedule: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("seed demo data: commit: %w", err)
	}
	return true, nil
}
