package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuidar/medstock/internal/storage"
)

type MedicationService struct {
	medications storage.MedicationRepository
	stock       storage.StockRepository
	schedules   storage.ScheduleRepository
	defaults    StockDefaults
}

func NewMedicationService(medications storage.MedicationRepository, stock storage.StockRepository, schedules storage.ScheduleRepository, defaults StockDefaults) *MedicationService {
	if defaults.Minimum <= 0 && defaults.Maximum <= 0 {
		defaults = StockDefaults{Minimum: storage.DefaultMinimum, Maximum: storage.DefaultMaximum}
	}
	return &MedicationService{
		medications: medications,
		stock:       stock,
		schedules:   schedules,
		defaults:    defaults,
	}
}

// Create adds the medication together with its stock record. A positive
// initial quantity is booked as an incoming movement.
func (s *MedicationService) Create(ctx context.Context, req CreateMedicationRequest) (*storage.MedicationDetail, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Dosage = strings.TrimSpace(req.Dosage)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := validatePrice(req.Price); err != nil {
		return nil, err
	}
	minimum, maximum := s.defaults.Minimum, s.defaults.Maximum
	if req.Minimum != nil {
		minimum = *req.Minimum
	}
	if req.Maximum != nil {
		maximum = *req.Maximum
	}
	if err := validateThresholds(minimum, maximum); err != nil {
		return nil, err
	}

	medication := &storage.Medication{
		Name:         req.Name,
		Description:  strings.TrimSpace(req.Description),
		Dosage:       req.Dosage,
		Manufacturer: strings.TrimSpace(req.Manufacturer),
		Price:        req.Price,
		Category:     strings.TrimSpace(req.Category),
	}
	stock := &storage.StockRecord{
		Quantity:   req.InitialQuantity,
		Minimum:    minimum,
		Maximum:    maximum,
		ExpiryDate: req.ExpiryDate,
		Lot:        req.Lot,
	}
	var initial *storage.Movement
	if req.InitialQuantity > 0 {
		entry := storage.Date(time.Now())
		stock.EntryDate = &entry
		initial = &storage.Movement{Actor: req.Actor, Reason: "estoque inicial"}
	}

	record, err := s.medications.CreateWithStock(ctx, medication, stock, initial)
	if err != nil {
		return nil, err
	}
	return &storage.MedicationDetail{Medication: *medication, Stock: record, Schedules: []storage.Schedule{}}, nil
}

// Get returns the medication with its stock and all of its schedules.
// Inactive medications are returned too.
func (s *MedicationService) Get(ctx context.Context, id int64) (*storage.MedicationDetail, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: medication id is required", ErrValidation)
	}

	medication, err := s.medications.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get medication: %w", err)
	}

	detail := &storage.MedicationDetail{Medication: *medication}
	record, err := s.stock.GetByMedication(ctx, id)
	switch {
	case err == nil:
		record.MedicationName = medication.Name
		detail.Stock = record
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("get medication stock: %w", err)
	}

	detail.Schedules, err = s.schedules.List(ctx, storage.ScheduleFilter{MedicationID: id})
	if err != nil {
		return nil, fmt.Errorf("get medication schedules: %w", err)
	}
	return detail, nil
}

func (s *MedicationService) List(ctx context.Context, req ListMedicationsRequest) ([]storage.Medication, error) {
	medications, err := s.medications.List(ctx, storage.MedicationFilter{
		IncludeInactive: req.IncludeInactive,
		Category:        strings.TrimSpace(req.Category),
		Search:          strings.TrimSpace(req.Search),
	})
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return medications, nil
}

// Overview is every active medication with its stock and active schedules.
func (s *MedicationService) Overview(ctx context.Context) ([]storage.MedicationDetail, error) {
	details, err := s.medications.ListWithStockAndSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("medication overview: %w", err)
	}
	return details, nil
}

func (s *MedicationService) Update(ctx context.Context, req UpdateMedicationRequest) (*storage.Medication, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if req.Dosage != nil {
		trimmed := strings.TrimSpace(*req.Dosage)
		req.Dosage = &trimmed
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Price != nil {
		if err := validatePrice(*req.Price); err != nil {
			return nil, err
		}
	}

	patch := storage.MedicationPatch{
		Name:         req.Name,
		Description:  req.Description,
		Dosage:       req.Dosage,
		Manufacturer: req.Manufacturer,
		Price:        req.Price,
		Category:     req.Category,
	}
	if err := s.medications.Update(ctx, req.ID, patch); err != nil {
		return nil, fmt.Errorf("update medication: %w", err)
	}

	medication, err := s.medications.Get(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("update medication: %w", err)
	}
	return medication, nil
}

// Delete deactivates the medication; its history stays.
func (s *MedicationService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: medication id is required", ErrValidation)
	}
	if err := s.medications.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}
	return nil
}

// Restore reactivates a deleted medication.
func (s *MedicationService) Restore(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: medication id is required", ErrValidation)
	}
	active := true
	if err := s.medications.Update(ctx, id, storage.MedicationPatch{Active: &active}); err != nil {
		return fmt.Errorf("restore medication: %w", err)
	}
	return nil
}

func requireActiveMedication(ctx context.Context, medications storage.MedicationRepository, id int64) (*storage.Medication, error) {
	medication, err := medications.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !medication.Active {
		return nil, fmt.Errorf("%w: %s", ErrInactiveMedication, medication.Name)
	}
	return medication, nil
}
