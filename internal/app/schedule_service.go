package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuidar/medstock/internal/storage"
)

type ScheduleService struct {
	medications storage.MedicationRepository
	schedules   storage.ScheduleRepository
}

func NewScheduleService(medications storage.MedicationRepository, schedules storage.ScheduleRepository) *ScheduleService {
	return &ScheduleService{
		medications: medications,
		schedules:   schedules,
	}
}

func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*storage.Schedule, error) {
	req.Time = strings.TrimSpace(req.Time)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	weekdays, err := parseWeekdays(req.Weekdays)
	if err != nil {
		return nil, err
	}
	medication, err := requireActiveMedication(ctx, s.medications, req.MedicationID)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	schedule := &storage.Schedule{
		MedicationID: req.MedicationID,
		Time:         req.Time,
		Weekdays:     weekdays,
		Active:       !req.Inactive,
		Notes:        strings.TrimSpace(req.Notes),
	}
	if _, err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	schedule.MedicationName = medication.Name
	return schedule, nil
}

func (s *ScheduleService) Get(ctx context.Context, id int64) (*storage.Schedule, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: schedule id is required", ErrValidation)
	}
	schedule, err := s.schedules.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return schedule, nil
}

func (s *ScheduleService) List(ctx context.Context, medicationID int64, activeOnly bool) ([]storage.Schedule, error) {
	schedules, err := s.schedules.List(ctx, storage.ScheduleFilter{MedicationID: medicationID, ActiveOnly: activeOnly})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

func (s *ScheduleService) Update(ctx context.Context, req UpdateScheduleRequest) (*storage.Schedule, error) {
	if req.Time != nil {
		trimmed := strings.TrimSpace(*req.Time)
		req.Time = &trimmed
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	patch := storage.SchedulePatch{Time: req.Time}
	if req.Weekdays != nil {
		weekdays, err := parseWeekdays(*req.Weekdays)
		if err != nil {
			return nil, err
		}
		patch.Weekdays = &weekdays
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		patch.Notes = &notes
	}

	if err := s.schedules.Update(ctx, req.ID, patch); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return s.Get(ctx, req.ID)
}

// Toggle flips the active flag and returns the updated schedule.
func (s *ScheduleService) Toggle(ctx context.Context, id int64) (*storage.Schedule, error) {
	schedule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.schedules.SetActive(ctx, id, !schedule.Active); err != nil {
		return nil, fmt.Errorf("toggle schedule: %w", err)
	}
	schedule.Active = !schedule.Active
	return schedule, nil
}

func (s *ScheduleService) SetActive(ctx context.Context, id int64, active bool) error {
	if id <= 0 {
		return fmt.Errorf("%w: schedule id is required", ErrValidation)
	}
	if err := s.schedules.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("set schedule active: %w", err)
	}
	return nil
}

func (s *ScheduleService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: schedule id is required", ErrValidation)
	}
	if err := s.schedules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

func parseWeekdays(values []string) (storage.WeekdaySet, error) {
	expanded := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				expanded = append(expanded, part)
			}
		}
	}
	weekdays, err := storage.ParseWeekdayList(expanded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return weekdays, nil
}
