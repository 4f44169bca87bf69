package app

import (
	"log/slog"
	"time"

	"github.com/cuidar/medstock/internal/alerts"
	"github.com/cuidar/medstock/internal/storage"
)

type Options struct {
	Defaults         StockDefaults
	ExpiryWindowDays int
	Now              func() time.Time
	Logger           *slog.Logger
}

// Services wires every service to one store.
type Services struct {
	Medications *MedicationService
	Stock       *StockService
	Schedules   *ScheduleService
	Alerts      *AlertService
}

func NewServices(store *storage.Store, opts Options) *Services {
	engine := alerts.NewEngine(store.Stock, store.Alerts, alerts.Options{
		ExpiryWindowDays: opts.ExpiryWindowDays,
		Now:              opts.Now,
		Logger:           opts.Logger,
	})
	return &Services{
		Medications: NewMedicationService(store.Medications, store.Stock, store.Schedules, opts.Defaults),
		Stock:       NewStockService(store.Medications, store.Stock, store.Movements),
		Schedules:   NewScheduleService(store.Medications, store.Schedules),
		Alerts:      NewAlertService(store.Alerts, engine),
	}
}
