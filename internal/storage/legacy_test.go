package storage

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateScheduleFormatRewritesLegacyRows(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	medication := mustCreateMedication(t, store, "Fluoxetina", "20mg")

	legacyID := insertRawSchedule(t, store.DB(), medication.ID, `{"segunda":true,"terca":true,"quarta":false}`)
	currentID := insertRawSchedule(t, store.DB(), medication.ID, `["Qua","Seg"]`)

	report := MigrateScheduleFormat(ctx, store.DB(), nil)
	require.Equal(t, MigrationReport{Scanned: 2, Rewritten: 1, Skipped: 1}, report)

	require.Equal(t, `["Seg","Ter"]`, rawWeekdays(t, store, legacyID))
	require.Equal(t, `["Qua","Seg"]`, rawWeekdays(t, store, currentID))

	again := store.MigrateScheduleFormat(ctx)
	require.Equal(t, MigrationReport{Scanned: 2, Skipped: 2}, again)
}

func TestMigrateScheduleFormatContinuesPastBadRows(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	medication := mustCreateMedication(t, store, "Risperidona", "1mg")

	badID := insertRawSchedule(t, store.DB(), medication.ID, `{segunda:true`)
	scalarID := insertRawSchedule(t, store.DB(), medication.ID, `"Seg"`)
	goodID := insertRawSchedule(t, store.DB(), medication.ID, `{"sexta":true,"domingo":true}`)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	report := MigrateScheduleFormat(ctx, store.DB(), logger)
	require.Equal(t, 3, report.Scanned)
	require.Equal(t, 2, report.Failed)
	require.Equal(t, 1, report.Rewritten)

	require.Equal(t, `{segunda:true`, rawWeekdays(t, store, badID))
	require.Equal(t, `"Seg"`, rawWeekdays(t, store, scalarID))
	require.Equal(t, `["Sex","Dom"]`, rawWeekdays(t, store, goodID))
	require.Contains(t, logs.String(), "schedule weekdays unreadable")

	loaded, err := store.Schedules.Get(ctx, badID)
	require.NoError(t, err)
	require.Empty(t, loaded.Weekdays)
}

func TestMigrateScheduleFormatNeverFails(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	// no schema at all
	report := MigrateScheduleFormat(context.Background(), db, nil)
	require.Equal(t, MigrationReport{}, report)

	require.Equal(t, MigrationReport{}, MigrateScheduleFormat(context.Background(), nil, nil))

	var nilStore *Store
	require.Equal(t, MigrationReport{}, nilStore.MigrateScheduleFormat(context.Background()))
}

func rawWeekdays(t *testing.T, store *Store, id int64) string {
	t.Helper()
	var raw string
	require.NoError(t, store.DB().QueryRow(`SELECT weekdays FROM schedules WHERE id = ?`, id).Scan(&raw))
	return raw
}
