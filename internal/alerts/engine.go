package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuidar/medstock/internal/storage"
)

type Options struct {
	ExpiryWindowDays int
	Rules            []Rule
	Now              func() time.Time
	Logger           *slog.Logger
}

// Result describes one reconciliation run.
type Result struct {
	RunID     string  `json:"run_id"`
	Evaluated int     `json:"evaluated"`
	Matched   int     `json:"matched"`
	Created   []int64 `json:"created"`
}

// Engine derives alerts from stock state. Reconciliations on one engine run
// one at a time.
type Engine struct {
	stock  storage.StockRepository
	alerts storage.AlertRepository
	rules  []Rule
	now    func() time.Time
	logger *slog.Logger

	mu sync.Mutex
}

func NewEngine(stock storage.StockRepository, alerts storage.AlertRepository, opts Options) *Engine {
	rules := opts.Rules
	if len(rules) == 0 {
		rules = DefaultRules(opts.ExpiryWindowDays)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		stock:  stock,
		alerts: alerts,
		rules:  rules,
		now:    now,
		logger: logger,
	}
}

// Reconcile evaluates every rule against the stock of each active
// medication and raises an alert for each match, unless an unread alert of
// that kind already exists for the medication. An alert that was read stays
// quiet until the stock record changes; a match after that change is a new
// occurrence and is raised again.
func (e *Engine) Reconcile(ctx context.Context) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := Result{RunID: uuid.NewString(), Created: []int64{}}
	logger := e.logger.With("run_id", result.RunID)

	records, err := e.stock.List(ctx, storage.StockFilter{})
	if err != nil {
		return result, fmt.Errorf("reconcile alerts: %w", err)
	}

	now := e.now()
	today := storage.Date(now)
	seen := map[int64]struct{}{}
	for _, record := range records {
		if _, dup := seen[record.MedicationID]; dup {
			continue
		}
		seen[record.MedicationID] = struct{}{}
		result.Evaluated++

		for _, rule := range e.rules {
			message, matched := rule.Evaluate(record, today)
			if !matched {
				continue
			}
			result.Matched++

			medicationID := record.MedicationID
			alert := &storage.Alert{
				MedicationID: &medicationID,
				Kind:         rule.Kind(),
				Message:      message,
				Date:         now.UTC(),
			}
			id, created, err := e.alerts.CreateIfNotRaisedSince(ctx, alert, record.UpdatedAt)
			if err != nil {
				return result, fmt.Errorf("reconcile alerts: medication %d: %w", medicationID, err)
			}
			if !created {
				logger.Debug("alert already raised", "medication_id", medicationID, "kind", rule.Kind())
				continue
			}
			result.Created = append(result.Created, id)
			logger.Info("alert raised", "alert_id", id, "medication_id", medicationID, "kind", rule.Kind())
		}
	}

	logger.Debug("alert reconciliation finished",
		"evaluated", result.Evaluated,
		"matched", result.Matched,
		"created", len(result.Created),
	)
	return result, nil
}
