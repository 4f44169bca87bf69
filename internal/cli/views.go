package cli

import (
	"time"

	"github.com/cuidar/medstock/internal/storage"
)

type medicationView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Description  string `json:"description,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Category     string `json:"category,omitempty"`
	Price        string `json:"price"`
	Active       bool   `json:"active"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type stockView struct {
	ID             int64  `json:"id"`
	MedicationID   int64  `json:"medication_id"`
	MedicationName string `json:"medication_name,omitempty"`
	Quantity       int    `json:"quantity"`
	Minimum        int    `json:"minimum"`
	Maximum        int    `json:"maximum"`
	Status         string `json:"status"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	Lot            string `json:"lot,omitempty"`
	EntryDate      string `json:"entry_date,omitempty"`
	UpdatedAt      string `json:"updated_at"`
}

type movementView struct {
	ID             int64  `json:"id"`
	MedicationID   int64  `json:"medication_id"`
	MedicationName string `json:"medication_name,omitempty"`
	Kind           string `json:"kind"`
	Quantity       int    `json:"quantity"`
	Date           string `json:"date"`
	Actor          string `json:"actor,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

type alertView struct {
	ID             int64  `json:"id"`
	MedicationID   *int64 `json:"medication_id,omitempty"`
	MedicationName string `json:"medication_name,omitempty"`
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	Date           string `json:"date"`
	Read           bool   `json:"read"`
}

type scheduleView struct {
	ID             int64              `json:"id"`
	MedicationID   int64              `json:"medication_id"`
	MedicationName string             `json:"medication_name,omitempty"`
	Time           string             `json:"time"`
	Weekdays       storage.WeekdaySet `json:"weekdays"`
	Active         bool               `json:"active"`
	Notes          string             `json:"notes,omitempty"`
}

type medicationDetailView struct {
	medicationView
	Stock     *stockView     `json:"stock"`
	Schedules []scheduleView `json:"schedules"`
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func optionalDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return storage.FormatDate(*t)
}

func toMedicationView(m storage.Medication) medicationView {
	return medicationView{
		ID:           m.ID,
		Name:         m.Name,
		Dosage:       m.Dosage,
		Description:  m.Description,
		Manufacturer: m.Manufacturer,
		Category:     m.Category,
		Price:        m.Price.StringFixed(2),
		Active:       m.Active,
		CreatedAt:    timestamp(m.CreatedAt),
		UpdatedAt:    timestamp(m.UpdatedAt),
	}
}

func toMedicationViews(list []storage.Medication) []medicationView {
	out := make([]medicationView, 0, len(list))
	for _, m := range list {
		out = append(out, toMedicationView(m))
	}
	return out
}

func toStockView(r storage.StockRecord) stockView {
	return stockView{
		ID:             r.ID,
		MedicationID:   r.MedicationID,
		MedicationName: r.MedicationName,
		Quantity:       r.Quantity,
		Minimum:        r.Minimum,
		Maximum:        r.Maximum,
		Status:         r.Status,
		ExpiryDate:     optionalDate(r.ExpiryDate),
		Lot:            r.Lot,
		EntryDate:      optionalDate(r.EntryDate),
		UpdatedAt:      timestamp(r.UpdatedAt),
	}
}

func toStockViews(list []storage.StockRecord) []stockView {
	out := make([]stockView, 0, len(list))
	for _, r := range list {
		out = append(out, toStockView(r))
	}
	return out
}

func toMovementViews(list []storage.Movement) []movementView {
	out := make([]movementView, 0, len(list))
	for _, m := range list {
		out = append(out, movementView{
			ID:             m.ID,
			MedicationID:   m.MedicationID,
			MedicationName: m.MedicationName,
			Kind:           string(m.Kind),
			Quantity:       m.Quantity,
			Date:           timestamp(m.Date),
			Actor:          m.Actor,
			Reason:         m.Reason,
		})
	}
	return out
}

func toAlertView(a storage.Alert) alertView {
	return alertView{
		ID:             a.ID,
		MedicationID:   a.MedicationID,
		MedicationName: a.MedicationName,
		Kind:           string(a.Kind),
		Message:        a.Message,
		Date:           timestamp(a.Date),
		Read:           a.Read,
	}
}

func toAlertViews(list []storage.Alert) []alertView {
	out := make([]alertView, 0, len(list))
	for _, a := range list {
		out = append(out, toAlertView(a))
	}
	return out
}

func toScheduleView(s storage.Schedule) scheduleView {
	weekdays := s.Weekdays
	if weekdays == nil {
		weekdays = storage.WeekdaySet{}
	}
	return scheduleView{
		ID:             s.ID,
		MedicationID:   s.MedicationID,
		MedicationName: s.MedicationName,
		Time:           s.Time,
		Weekdays:       weekdays,
		Active:         s.Active,
		Notes:          s.Notes,
	}
}

func toScheduleViews(list []storage.Schedule) []scheduleView {
	out := make([]scheduleView, 0, len(list))
	for _, s := range list {
		out = append(out, toScheduleView(s))
	}
	return out
}

func toMedicationDetailView(d storage.MedicationDetail) medicationDetailView {
	view := medicationDetailView{
		medicationView: toMedicationView(d.Medication),
		Schedules:      toScheduleViews(d.Schedules),
	}
	if d.Stock != nil {
		stock := toStockView(*d.Stock)
		view.Stock = &stock
	}
	return view
}
