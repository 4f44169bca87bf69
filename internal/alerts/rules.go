package alerts

import (
	"fmt"
	"time"

	"github.com/cuidar/medstock/internal/storage"
)

const DefaultExpiryWindowDays = 30

// Rule decides whether a stock record warrants an alert. today is a calendar
// date at UTC midnight, as produced by storage.Date.
type Rule interface {
	Kind() storage.AlertKind
	Evaluate(record storage.StockRecord, today time.Time) (message string, matched bool)
}

// LowStockRule fires when the quantity is at or below the minimum.
type LowStockRule struct{}

func (LowStockRule) Kind() storage.AlertKind { return storage.AlertKindLowStock }

func (LowStockRule) Evaluate(record storage.StockRecord, _ time.Time) (string, bool) {
	if record.Quantity > record.Minimum {
		return "", false
	}
	return fmt.Sprintf("Estoque baixo: %s com %d unidade(s) (mínimo %d)", record.MedicationName, record.Quantity, record.Minimum), true
}

// ExpiryRule fires when the expiry date falls in [today, today+WindowDays].
// Dates already in the past do not match.
type ExpiryRule struct {
	WindowDays int
}

func (ExpiryRule) Kind() storage.AlertKind { return storage.AlertKindExpiry }

func (r ExpiryRule) Evaluate(record storage.StockRecord, today time.Time) (string, bool) {
	if record.ExpiryDate == nil {
		return "", false
	}
	window := r.WindowDays
	if window <= 0 {
		window = DefaultExpiryWindowDays
	}

	expiry := storage.Date(*record.ExpiryDate)
	last := today.AddDate(0, 0, window)
	if expiry.Before(today) || expiry.After(last) {
		return "", false
	}
	return fmt.Sprintf("Validade próxima: %s vence em %s", record.MedicationName, storage.FormatDate(expiry)), true
}

func DefaultRules(expiryWindowDays int) []Rule {
	return []Rule{
		LowStockRule{},
		ExpiryRule{WindowDays: expiryWindowDays},
	}
}
