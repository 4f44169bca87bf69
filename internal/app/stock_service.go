package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuidar/medstock/internal/storage"
)

type StockService struct {
	medications storage.MedicationRepository
	stock       storage.StockRepository
	movements   storage.MovementRepository
}

func NewStockService(medications storage.MedicationRepository, stock storage.StockRepository, movements storage.MovementRepository) *StockService {
	return &StockService{
		medications: medications,
		stock:       stock,
		movements:   movements,
	}
}

func (s *StockService) List(ctx context.Context, includeInactive bool) ([]storage.StockRecord, error) {
	records, err := s.stock.List(ctx, storage.StockFilter{IncludeInactive: includeInactive})
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return records, nil
}

func (s *StockService) Get(ctx context.Context, medicationID int64) (*storage.StockRecord, error) {
	if medicationID <= 0 {
		return nil, fmt.Errorf("%w: medication id is required", ErrValidation)
	}
	medication, err := s.medications.Get(ctx, medicationID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	record, err := s.stock.GetByMedication(ctx, medicationID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	record.MedicationName = medication.Name
	return record, nil
}

// Receive books incoming units.
func (s *StockService) Receive(ctx context.Context, req StockMovementRequest) (*storage.StockRecord, error) {
	return s.adjust(ctx, storage.MovementIn, req)
}

// Dispense books outgoing units. Asking for more than is on hand returns
// storage.ErrInsufficientStock and leaves the stock unchanged.
func (s *StockService) Dispense(ctx context.Context, req StockMovementRequest) (*storage.StockRecord, error) {
	return s.adjust(ctx, storage.MovementOut, req)
}

func (s *StockService) adjust(ctx context.Context, kind storage.MovementKind, req StockMovementRequest) (*storage.StockRecord, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	medication, err := requireActiveMedication(ctx, s.medications, req.MedicationID)
	if err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}

	record, err := s.stock.Adjust(ctx, req.MedicationID, storage.Adjustment{
		Kind:       kind,
		Quantity:   req.Quantity,
		Actor:      req.Actor,
		Reason:     req.Reason,
		Date:       req.Date,
		ExpiryDate: req.ExpiryDate,
		Lot:        req.Lot,
	})
	if err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	record.MedicationName = medication.Name
	return record, nil
}

// Set overwrites stock fields directly, creating the record if needed. No
// movement is recorded; use Receive or Dispense for quantity changes that
// belong in the history.
func (s *StockService) Set(ctx context.Context, req SetStockRequest) (*storage.StockRecord, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	medication, err := requireActiveMedication(ctx, s.medications, req.MedicationID)
	if err != nil {
		return nil, fmt.Errorf("set stock: %w", err)
	}

	patch := storage.StockPatch{
		Quantity:   req.Quantity,
		Minimum:    req.Minimum,
		Maximum:    req.Maximum,
		ExpiryDate: req.ExpiryDate,
		Lot:        req.Lot,
	}
	minimum, maximum := storage.DefaultMinimum, storage.DefaultMaximum
	existing, err := s.stock.GetByMedication(ctx, req.MedicationID)
	switch {
	case err == nil:
		minimum, maximum = existing.Minimum, existing.Maximum
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("set stock: %w", err)
	}
	if req.Minimum != nil {
		minimum = *req.Minimum
	}
	if req.Maximum != nil {
		maximum = *req.Maximum
	}
	if err := validateThresholds(minimum, maximum); err != nil {
		return nil, err
	}

	id, err := s.stock.Upsert(ctx, req.MedicationID, patch)
	if err != nil {
		return nil, fmt.Errorf("set stock: %w", err)
	}
	record, err := s.stock.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("set stock: %w", err)
	}

	status := storage.StockStatus(record.Quantity, record.Minimum, record.Maximum)
	if status != record.Status {
		if err := s.stock.Update(ctx, id, storage.StockPatch{Status: &status}); err != nil {
			return nil, fmt.Errorf("set stock: %w", err)
		}
		record.Status = status
	}
	record.MedicationName = medication.Name
	return record, nil
}

func (s *StockService) Movements(ctx context.Context, req ListMovementsRequest) ([]storage.Movement, error) {
	if req.Kind != "" && !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown movement kind %q", ErrValidation, req.Kind)
	}
	if req.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}
	movements, err := s.movements.List(ctx, storage.MovementFilter{
		MedicationID: req.MedicationID,
		Kind:         req.Kind,
		Since:        req.Since,
		Limit:        req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}
