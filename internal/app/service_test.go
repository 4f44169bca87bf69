package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cuidar/medstock/internal/storage"
)

func TestMedicationServiceCreateValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	svc := newAppTestServices(t, newAppTestStore(t))
	ctx := context.Background()

	_, err := svc.Medications.Create(ctx, CreateMedicationRequest{Dosage: "10mg"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Medications.Create(ctx, CreateMedicationRequest{Name: "   ", Dosage: "10mg"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Aspirina"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Aspirina", Dosage: "100mg", Price: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Aspirina", Dosage: "100mg", InitialQuantity: -2})
	require.ErrorIs(t, err, ErrValidation)

	minimum, maximum := 50, 20
	_, err = svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Aspirina", Dosage: "100mg", Minimum: &minimum, Maximum: &maximum})
	require.ErrorIs(t, err, ErrValidation)

	list, err := svc.Medications.List(ctx, ListMedicationsRequest{IncludeInactive: true})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestMedicationServiceCreateBooksInitialStock(t *testing.T) {
	t.Parallel()

	store := newAppTestStore(t)
	svc := newAppTestServices(t, store)
	ctx := context.Background()

	expiry := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)
	detail, err := svc.Medications.Create(ctx, CreateMedicationRequest{
		Name:            " Losartana ",
		Dosage:          "50mg",
		Price:           decimal.RequireFromString("18.90"),
		InitialQuantity: 30,
		ExpiryDate:      &expiry,
		Lot:             "L1",
		Actor:           "ana",
	})
	require.NoError(t, err)
	require.Equal(t, "Losartana", detail.Name)
	require.NotNil(t, detail.Stock)
	require.Equal(t, 30, detail.Stock.Quantity)
	require.Equal(t, storage.DefaultMinimum, detail.Stock.Minimum)
	require.Equal(t, storage.StockStatusNormal, detail.Stock.Status)
	require.Equal(t, "Losartana", detail.Stock.MedicationName)

	movements, err := svc.Stock.Movements(ctx, ListMovementsRequest{MedicationID: detail.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, storage.MovementIn, movements[0].Kind)
	require.Equal(t, "ana", movements[0].Actor)

	empty, err := svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Dipirona", Dosage: "500mg"})
	require.NoError(t, err)
	require.NotNil(t, empty.Stock)
	require.Zero(t, empty.Stock.Quantity)
	require.Equal(t, storage.StockStatusLow, empty.Stock.Status)
}

func TestMedicationServiceCreateLeavesNothingWhenStockFails(t *testing.T) {
	t.Parallel()

	store := newAppTestStore(t)
	svc := newAppTestServices(t, store)
	ctx := context.Background()
	_, err := store.DB().ExecContext(ctx, `
		CREATE TRIGGER reject_stock BEFORE INSERT ON stock
		BEGIN SELECT RAISE(ABORT, 'stock unavailable'); END
	`)
	require.NoError(t, err)

	_, err = svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Losartana", Dosage: "50mg", InitialQuantity: 30})
	require.Error(t, err)

	list, err := svc.Medications.List(ctx, ListMedicationsRequest{IncludeInactive: true})
	require.NoError(t, err)
	require.Empty(t, list)
	movements, err := svc.Stock.Movements(ctx, ListMovementsRequest{})
	require.NoError(t, err)
	require.Empty(t, movements)
}

func TestMedicationServiceUsesConfiguredDefaults(t *testing.T) {
	t.Parallel()

	store := newAppTestStore(t)
	svc := NewServices(store, Options{Defaults: StockDefaults{Minimum: 4, Maximum: 40}})
	detail, err := svc.Medications.Create(context.Background(), CreateMedicationRequest{Name: "Vitamina D", Dosage: "2000UI", InitialQuantity: 10})
	require.NoError(t, err)
	require.Equal(t, 4, detail.Stock.Minimum)
	require.Equal(t, 40, detail.Stock.Maximum)
}

func TestMedicationServiceUpdateDeleteRestore(t *testing.T) {
	t.Parallel()

	svc := newAppTestServices(t, newAppTestStore(t))
	ctx := context.Background()

	detail, err := svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Sinvastatina", Dosage: "20mg"})
	require.NoError(t, err)

	empty := ""
	_, err = svc.Medications.Update(ctx, UpdateMedicationRequest{ID: detail.ID, Name: &empty})
	require.ErrorIs(t, err, ErrValidation)

	negative := decimal.NewFromInt(-3)
	_, err = svc.Medications.Update(ctx, UpdateMedicationRequest{ID: detail.ID, Price: &negative})
	require.ErrorIs(t, err, ErrValidation)

	dosage := "40mg"
	updated, err := svc.Medications.Update(ctx, UpdateMedicationRequest{ID: detail.ID, Dosage: &dosage})
	require.NoError(t, err)
	require.Equal(t, "40mg", updated.Dosage)

	_, err = svc.Medications.Update(ctx, UpdateMedicationRequest{ID: 999, Dosage: &dosage})
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, svc.Medications.Delete(ctx, detail.ID))
	overview, err := svc.Medications.Overview(ctx)
	require.NoError(t, err)
	require.Empty(t, overview)

	got, err := svc.Medications.Get(ctx, detail.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	_, err = svc.Stock.Receive(ctx, StockMovementRequest{MedicationID: detail.ID, Quantity: 1})
	require.ErrorIs(t, err, ErrInactiveMedication)

	require.NoError(t, svc.Medications.Restore(ctx, detail.ID))
	overview, err = svc.Medications.Overview(ctx)
	require.NoError(t, err)
	require.Len(t, overview, 1)
}

func TestStockServiceReceiveDispense(t *testing.T) {
	t.Parallel()

	svc := newAppTestServices(t, newAppTestStore(t))
	ctx := context.Background()

	detail, err := svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Metformina", Dosage: "850mg", InitialQuantity: 12})
	require.NoError(t, err)

	_, err = svc.Stock.Dispense(ctx, StockMovementRequest{MedicationID: detail.ID, Quantity: 0})
	require.ErrorIs(t, err, ErrValidation)

	record, err := svc.Stock.Dispense(ctx, StockMovementRequest{MedicationID: detail.ID, Quantity: 4, Reason: "uso diario"})
	require.NoError(t, err)
	require.Equal(t, 8, record.Quantity)
	require.Equal(t, storage.StockStatusLow, record.Status)

	_, err = svc.Stock.Dispense(ctx, StockMovementRequest{MedicationID: detail.ID, Quantity: 9})
	require.ErrorIs(t, err, storage.ErrInsufficientStock)

	record, err = svc.Stock.Receive(ctx, StockMovementRequest{MedicationID: detail.ID, Quantity: 100})
	require.NoError(t, err)
	require.Equal(t, 108, record.Quantity)
	require.Equal(t, storage.StockStatusExcess, record.Status)

	_, err = svc.Stock.Receive(ctx, StockMovementRequest{MedicationID: 404, Quantity: 1})
	require.ErrorIs(t, err, storage.ErrNotFound)

	outs, err := svc.Stock.Movements(ctx, ListMovementsRequest{Kind: storage.MovementOut})
	require.NoError(t, err)
	require.Len(t, outs, 1)

	_, err = svc.Stock.Movements(ctx, ListMovementsRequest{Kind: "perda"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestStockServiceSetRecomputesStatus(t *testing.T) {
	t.Parallel()

	svc := newAppTestServices(t, newAppTestStore(t))
	ctx := context.Background()

	detail, err := svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Omeprazol", Dosage: "20mg", InitialQuantity: 30})
	require.NoError(t, err)

	quantity := 5
	record, err := svc.Stock.Set(ctx, SetStockRequest{MedicationID: detail.ID, Quantity: &quantity})
	require.NoError(t, err)
	require.Equal(t, 5, record.Quantity)
	require.Equal(t, storage.StockStatusLow, record.Status)

	minimum := 500
	_, err = svc.Stock.Set(ctx, SetStockRequest{MedicationID: detail.ID, Minimum: &minimum})
	require.ErrorIs(t, err, ErrValidation)

	minimum = 2
	record, err = svc.Stock.Set(ctx, SetStockRequest{MedicationID: detail.ID, Minimum: &minimum})
	require.NoError(t, err)
	require.Equal(t, storage.StockStatusNormal, record.Status)

	movements, err := svc.Stock.Movements(ctx, ListMovementsRequest{MedicationID: detail.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)
}

func TestScheduleServiceLifecycle(t *testing.T) {
	t.Parallel()

	svc := newAppTestServices(t, newAppTestStore(t))
	ctx := context.Background()

	detail, err := svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Levotiroxina", Dosage: "50mcg"})
	require.NoError(t, err)

	_, err = svc.Schedules.Create(ctx, CreateScheduleRequest{MedicationID: detail.ID, Time: "25:00"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Schedules.Create(ctx, CreateScheduleRequest{MedicationID: detail.ID, Time: "7:00"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Schedules.Create(ctx, CreateScheduleRequest{MedicationID: detail.ID, Time: "07:00", Weekdays: []string{"funday"}})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Schedules.Create(ctx, CreateScheduleRequest{MedicationID: 404, Time: "07:00"})
	require.ErrorIs(t, err, storage.ErrNotFound)

	schedule, err := svc.Schedules.Create(ctx, CreateScheduleRequest{
		MedicationID: detail.ID,
		Time:         "07:00",
		Weekdays:     []string{"sex,seg", "Quarta"},
		Notes:        "em jejum",
	})
	require.NoError(t, err)
	require.True(t, schedule.Active)
	require.Equal(t, []string{"Seg", "Qua", "Sex"}, schedule.Weekdays.Strings())
	require.Equal(t, "Levotiroxina", schedule.MedicationName)

	newTime := "06:45"
	days := []string{"sab", "dom"}
	updated, err := svc.Schedules.Update(ctx, UpdateScheduleRequest{ID: schedule.ID, Time: &newTime, Weekdays: &days})
	require.NoError(t, err)
	require.Equal(t, "06:45", updated.Time)
	require.Equal(t, []string{"Sáb", "Dom"}, updated.Weekdays.Strings())
	require.Equal(t, "em jejum", updated.Notes)

	toggled, err := svc.Schedules.Toggle(ctx, schedule.ID)
	require.NoError(t, err)
	require.False(t, toggled.Active)

	active, err := svc.Schedules.List(ctx, detail.ID, true)
	require.NoError(t, err)
	require.Empty(t, active)

	require.NoError(t, svc.Schedules.Delete(ctx, schedule.ID))
	_, err = svc.Schedules.Get(ctx, schedule.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAlertServiceReconcileAndRead(t *testing.T) {
	t.Parallel()

	svc := newAppTestServices(t, newAppTestStore(t))
	ctx := context.Background()

	detail, err := svc.Medications.Create(ctx, CreateMedicationRequest{Name: "Test", Dosage: "10mg", Price: decimal.NewFromFloat(5.0), InitialQuantity: 3})
	require.NoError(t, err)

	result, err := svc.Alerts.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)

	count, err := svc.Alerts.CountUnread(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	list, err := svc.Alerts.List(ctx, storage.AlertFilter{MedicationID: detail.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, storage.AlertKindLowStock, list[0].Kind)

	require.NoError(t, svc.Alerts.MarkRead(ctx, list[0].ID))
	require.ErrorIs(t, svc.Alerts.MarkRead(ctx, 0), ErrValidation)

	result, err = svc.Alerts.Reconcile(ctx)
	require.NoError(t, err)
	require.Empty(t, result.Created)

	raised, created, err := svc.Alerts.Raise(ctx, RaiseAlertRequest{Kind: "lembrete", Message: "Renovar receita"})
	require.NoError(t, err)
	require.True(t, created)
	require.Nil(t, raised.MedicationID)

	_, created, err = svc.Alerts.Raise(ctx, RaiseAlertRequest{Kind: "lembrete", Message: "Renovar receita", Unique: true})
	require.NoError(t, err)
	require.False(t, created, "an unread reminder is already pending")

	_, created, err = svc.Alerts.Raise(ctx, RaiseAlertRequest{Kind: "lembrete", Message: "Renovar receita"})
	require.NoError(t, err)
	require.True(t, created)

	_, _, err = svc.Alerts.Raise(ctx, RaiseAlertRequest{Kind: "lembrete"})
	require.ErrorIs(t, err, ErrValidation)

	changed, err := svc.Alerts.MarkAllRead(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), changed)
}

func TestBootstrapStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "medstock.db")
	stats, err := BootstrapStore(context.Background(), path, true, nil)
	require.NoError(t, err)
	require.Equal(t, storage.CurrentSchemaVersion(), stats.SchemaVersion)
	require.Positive(t, stats.Rows["medications"])

	_, err = BootstrapStore(context.Background(), "", false, nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestValidClockTime(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"00:00", "08:30", "23:59"} {
		require.Truef(t, ValidClockTime(value), "expected %s to be valid", value)
	}
	for _, value := range []string{"24:00", "8:30", "12:60", "noon", ""} {
		require.Falsef(t, ValidClockTime(value), "expected %s to be invalid", value)
	}
}

func newAppTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "medstock.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	require.NoError(t, storage.PrepareSchema(context.Background(), store.DB()))
	return store
}

func newAppTestServices(t *testing.T, store *storage.Store) *Services {
	t.Helper()
	return NewServices(store, Options{})
}
