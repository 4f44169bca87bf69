package app

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cuidar/medstock/internal/storage"
)

var (
	ErrValidation         = errors.New("app: validation failed")
	ErrInactiveMedication = errors.New("app: medication is inactive")
)

// StockDefaults are the thresholds given to a new stock record when the
// caller does not set them.
type StockDefaults struct {
	Minimum int
	Maximum int
}

type CreateMedicationRequest struct {
	Name         string `validate:"required,max=200"`
	Description  string `validate:"max=1000"`
	Dosage       string `validate:"required,max=100"`
	Manufacturer string `validate:"max=200"`
	Price        decimal.Decimal
	Category     string `validate:"max=100"`

	InitialQuantity int  `validate:"gte=0"`
	Minimum         *int `validate:"omitempty,gte=0"`
	Maximum         *int `validate:"omitempty,gte=0"`
	ExpiryDate      *time.Time
	Lot             string `validate:"max=100"`
	Actor           string `validate:"max=100"`
}

type UpdateMedicationRequest struct {
	ID           int64   `validate:"gt=0"`
	Name         *string `validate:"omitempty,min=1,max=200"`
	Description  *string `validate:"omitempty,max=1000"`
	Dosage       *string `validate:"omitempty,min=1,max=100"`
	Manufacturer *string `validate:"omitempty,max=200"`
	Price        *decimal.Decimal
	Category     *string `validate:"omitempty,max=100"`
}

type ListMedicationsRequest struct {
	IncludeInactive bool
	Category        string
	Search          string
}

type StockMovementRequest struct {
	MedicationID int64 `validate:"gt=0"`
	Quantity     int   `validate:"gt=0"`
	Actor        string `validate:"max=100"`
	Reason       string `validate:"max=500"`
	Date         time.Time
	ExpiryDate   *time.Time
	Lot          string `validate:"max=100"`
}

type ListMovementsRequest struct {
	MedicationID int64
	Kind         storage.MovementKind
	Since        *time.Time
	Limit        int
}

type SetStockRequest struct {
	MedicationID int64 `validate:"gt=0"`
	Quantity     *int  `validate:"omitempty,gte=0"`
	Minimum      *int  `validate:"omitempty,gte=0"`
	Maximum      *int  `validate:"omitempty,gte=0"`
	ExpiryDate   *time.Time
	Lot          *string `validate:"omitempty,max=100"`
}

type CreateScheduleRequest struct {
	MedicationID int64    `validate:"gt=0"`
	Time         string   `validate:"required,hhmm"`
	Weekdays     []string `validate:"dive,required"`
	Inactive     bool
	Notes        string `validate:"max=500"`
}

type UpdateScheduleRequest struct {
	ID       int64     `validate:"gt=0"`
	Time     *string   `validate:"omitempty,hhmm"`
	Weekdays *[]string `validate:"omitempty,dive,required"`
	Notes    *string   `validate:"omitempty,max=500"`
}

type RaiseAlertRequest struct {
	MedicationID *int64
	Kind         string `validate:"required,max=64"`
	Message      string `validate:"required,max=500"`
	Unique       bool
}
