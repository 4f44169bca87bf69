package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// MigrationReport counts what one legacy weekday migration pass did.
type MigrationReport struct {
	Scanned   int `json:"scanned"`
	Rewritten int `json:"rewritten"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type legacyScheduleRow struct {
	id       int64
	weekdays string
}

// MigrateScheduleFormat rewrites schedules whose weekdays are still stored as
// a day-name to boolean object into the abbreviation list. Rows already in
// list form are left alone. Per-row problems are logged and counted; the
// function never returns an error so startup is not blocked by bad data.
func MigrateScheduleFormat(ctx context.Context, db *sql.DB, logger *slog.Logger) (report MigrationReport) {
	if logger == nil {
		logger = discardLogger()
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("schedule format migration panicked", "panic", fmt.Sprint(recovered))
		}
	}()
	if db == nil {
		logger.Warn("schedule format migration skipped", "error", ErrNotInitialized)
		return report
	}

	rows, err := loadLegacyScheduleRows(ctx, db)
	if err != nil {
		logger.Warn("schedule format migration skipped", "error", err)
		return report
	}

	for _, row := range rows {
		report.Scanned++

		set, legacy, err := decodeWeekdays([]byte(row.weekdays))
		if err != nil {
			report.Failed++
			logger.Warn("schedule weekdays unreadable", "schedule_id", row.id, "error", err)
			continue
		}
		if !legacy {
			report.Skipped++
			continue
		}

		if _, err := db.ExecContext(ctx, `UPDATE schedules SET weekdays = ? WHERE id = ?`, encodeWeekdays(set), row.id); err != nil {
			report.Failed++
			logger.Warn("schedule weekdays rewrite failed", "schedule_id", row.id, "error", err)
			continue
		}
		report.Rewritten++
		logger.Debug("schedule weekdays rewritten", "schedule_id", row.id, "weekdays", set.Strings())
	}

	if report.Rewritten > 0 || report.Failed > 0 {
		logger.Info("schedule format migration finished",
			"scanned", report.Scanned,
			"rewritten", report.Rewritten,
			"failed", report.Failed,
		)
	}
	return report
}

// MigrateScheduleFormat runs the legacy weekday migration against this store.
func (s *Store) MigrateScheduleFormat(ctx context.Context) MigrationReport {
	if s == nil {
		return MigrateScheduleFormat(ctx, nil, nil)
	}
	return MigrateScheduleFormat(ctx, s.db, s.logger)
}

// loadLegacyScheduleRows reads everything up front so updates do not run
// while the cursor holds the only pooled connection.
func loadLegacyScheduleRows(ctx context.Context, db *sql.DB) ([]legacyScheduleRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, weekdays FROM schedules ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	defer rows.Close()

	out := []legacyScheduleRow{}
	for rows.Next() {
		var (
			row      legacyScheduleRow
			weekdays sql.NullString
		)
		if err := rows.Scan(&row.id, &weekdays); err != nil {
			return nil, fmt.Errorf("load schedules: %w", err)
		}
		row.weekdays = weekdays.String
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load schedules: iterate: %w", err)
	}
	return out, nil
}
