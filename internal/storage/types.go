package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("storage: not found")
	ErrNotInitialized    = errors.New("storage: store not initialized")
	ErrInsufficientStock = errors.New("storage: insufficient stock")
	ErrSchemaTooNew      = errors.New("storage: schema version newer than code")
	ErrInvalidPatch      = errors.New("storage: invalid patch")
)

const (
	DefaultMinimum = 10
	DefaultMaximum = 100
)

type MovementKind string

const (
	MovementIn  MovementKind = "entrada"
	MovementOut MovementKind = "saida"
)

func (k MovementKind) Valid() bool {
	return k == MovementIn || k == MovementOut
}

type AlertKind string

const (
	AlertKindLowStock AlertKind = "low-stock"
	AlertKindExpiry   AlertKind = "expiry-approaching"
)

const (
	StockStatusNormal = "normal"
	StockStatusLow    = "baixo"
	StockStatusExcess = "excesso"
)

type Medication struct {
	ID           int64
	Name         string
	Description  string
	Dosage       string
	Manufacturer string
	Price        decimal.Decimal
	Category     string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type MedicationFilter struct {
	IncludeInactive bool
	Category        string
	Search          string
}

// MedicationPatch lists the mutable medication columns. Nil fields are left
// untouched.
type MedicationPatch struct {
	Name         *string
	Description  *string
	Dosage       *string
	Manufacturer *string
	Price        *decimal.Decimal
	Category     *string
	Active       *bool
}

// StockRecord dates (ExpiryDate, EntryDate) are calendar dates at UTC midnight.
type StockRecord struct {
	ID             int64
	MedicationID   int64
	MedicationName string
	Quantity       int
	Minimum        int
	Maximum        int
	ExpiryDate     *time.Time
	Status         string
	Lot            string
	EntryDate      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type StockFilter struct {
	IncludeInactive bool
}

type StockPatch struct {
	Quantity   *int
	Minimum    *int
	Maximum    *int
	ExpiryDate *time.Time
	Status     *string
	Lot        *string
	EntryDate  *time.Time
}

// Adjustment describes one stock change. Quantity is always positive; Kind
// decides the direction.
type Adjustment struct {
	Kind       MovementKind
	Quantity   int
	Actor      string
	Reason     string
	Date       time.Time
	ExpiryDate *time.Time
	Lot        string
}

type Movement struct {
	ID             int64
	MedicationID   int64
	MedicationName string
	Kind           MovementKind
	Quantity       int
	Date           time.Time
	Actor          string
	Reason         string
	CreatedAt      time.Time
}

type MovementFilter struct {
	MedicationID int64
	Kind         MovementKind
	Since        *time.Time
	Limit        int
}

type Alert struct {
	ID             int64
	MedicationID   *int64
	MedicationName string
	Kind           AlertKind
	Message        string
	Date           time.Time
	Read           bool
	CreatedAt      time.Time
}

type AlertFilter struct {
	UnreadOnly   bool
	MedicationID int64
	Kind         AlertKind
	Limit        int
}

type Schedule struct {
	ID             int64
	MedicationID   int64
	MedicationName string
	Time           string
	Weekdays       WeekdaySet
	Active         bool
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ScheduleFilter struct {
	MedicationID int64
	ActiveOnly   bool
}

type SchedulePatch struct {
	Time     *string
	Weekdays *WeekdaySet
	Active   *bool
	Notes    *string
}

// MedicationDetail is an active medication with its stock record (nil when
// none exists) and its active schedules.
type MedicationDetail struct {
	Medication
	Stock     *StockRecord
	Schedules []Schedule
}

type MedicationRepository interface {
	List(ctx context.Context, filter MedicationFilter) ([]Medication, error)
	Get(ctx context.Context, id int64) (*Medication, error)
	Create(ctx context.Context, medication *Medication) (int64, error)
	CreateWithStock(ctx context.Context, medication *Medication, stock *StockRecord, initial *Movement) (*StockRecord, error)
	Update(ctx context.Context, id int64, patch MedicationPatch) error
	Delete(ctx context.Context, id int64) error
	ListWithStockAndSchedules(ctx context.Context) ([]MedicationDetail, error)
}

type StockRepository interface {
	List(ctx context.Context, filter StockFilter) ([]StockRecord, error)
	Get(ctx context.Context, id int64) (*StockRecord, error)
	GetByMedication(ctx context.Context, medicationID int64) (*StockRecord, error)
	Create(ctx context.Context, record *StockRecord) (int64, error)
	Update(ctx context.Context, id int64, patch StockPatch) error
	Upsert(ctx context.Context, medicationID int64, patch StockPatch) (int64, error)
	Adjust(ctx context.Context, medicationID int64, adj Adjustment) (*StockRecord, error)
}

// MovementRepository is append-only: there is no way to change or remove a
// recorded movement.
type MovementRepository interface {
	Append(ctx context.Context, movement *Movement) (int64, error)
	Get(ctx context.Context, id int64) (*Movement, error)
	List(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

type AlertRepository interface {
	Create(ctx context.Context, alert *Alert) (int64, error)
	CreateIfNoUnread(ctx context.Context, alert *Alert) (int64, bool, error)
	CreateIfNotRaisedSince(ctx context.Context, alert *Alert, since time.Time) (int64, bool, error)
	Get(ctx context.Context, id int64) (*Alert, error)
	List(ctx context.Context, filter AlertFilter) ([]Alert, error)
	CountUnread(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) (int64, error)
}

type ScheduleRepository interface {
	List(ctx context.Context, filter ScheduleFilter) ([]Schedule, error)
	Get(ctx context.Context, id int64) (*Schedule, error)
	Create(ctx context.Context, schedule *Schedule) (int64, error)
	Update(ctx context.Context, id int64, patch SchedulePatch) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}
