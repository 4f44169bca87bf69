package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuidar/medstock/internal/alerts"
	"github.com/cuidar/medstock/internal/storage"
)

type AlertService struct {
	alerts storage.AlertRepository
	engine *alerts.Engine
}

func NewAlertService(repo storage.AlertRepository, engine *alerts.Engine) *AlertService {
	return &AlertService{
		alerts: repo,
		engine: engine,
	}
}

func (s *AlertService) Reconcile(ctx context.Context) (alerts.Result, error) {
	if s.engine == nil {
		return alerts.Result{}, fmt.Errorf("reconcile alerts: %w", storage.ErrNotInitialized)
	}
	return s.engine.Reconcile(ctx)
}

func (s *AlertService) List(ctx context.Context, filter storage.AlertFilter) ([]storage.Alert, error) {
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}
	list, err := s.alerts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return list, nil
}

func (s *AlertService) CountUnread(ctx context.Context) (int, error) {
	count, err := s.alerts.CountUnread(ctx)
	if err != nil {
		return 0, fmt.Errorf("count unread alerts: %w", err)
	}
	return count, nil
}

// Raise records an alert on behalf of a caller rather than a rule. With
// Unique set the alert is skipped while an unread one of the same kind is
// pending for the same medication; the bool reports whether it was written.
func (s *AlertService) Raise(ctx context.Context, req RaiseAlertRequest) (*storage.Alert, bool, error) {
	req.Kind = strings.TrimSpace(req.Kind)
	req.Message = strings.TrimSpace(req.Message)
	if err := validateRequest(req); err != nil {
		return nil, false, err
	}
	alert := &storage.Alert{
		MedicationID: req.MedicationID,
		Kind:         storage.AlertKind(req.Kind),
		Message:      req.Message,
	}
	if !req.Unique {
		if _, err := s.alerts.Create(ctx, alert); err != nil {
			return nil, false, fmt.Errorf("raise alert: %w", err)
		}
		return alert, true, nil
	}
	_, created, err := s.alerts.CreateIfNoUnread(ctx, alert)
	if err != nil {
		return nil, false, fmt.Errorf("raise alert: %w", err)
	}
	return alert, created, nil
}

func (s *AlertService) MarkRead(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: alert id is required", ErrValidation)
	}
	if err := s.alerts.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	return nil
}

func (s *AlertService) MarkAllRead(ctx context.Context) (int64, error) {
	count, err := s.alerts.MarkAllRead(ctx)
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read: %w", err)
	}
	return count, nil
}
