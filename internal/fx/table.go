// Package fx converts account amounts into the reporting currency using
// a fixed, injected rate table.
package fx

import (
	"strings"

	apperrors "equity_monitor/internal/errors"
)

// Table holds conversion rates from source currencies into the single
// target currency. Rates are configured, not fetched.
type Table struct {
	target string
	rates  map[string]float64
}

// NewTable creates a Table converting into target. Rate keys are
// normalized to upper case.
func NewTable(target string, rates map[string]float64) *Table {
	normalized := make(map[string]float64, len(rates))
	for currency, rate := range rates {
		normalized[strings.ToUpper(strings.TrimSpace(currency))] = rate
	}
	return &Table{
		target: strings.ToUpper(strings.TrimSpace(target)),
		rates:  normalized,
	}
}

// Target returns the reporting currency.
func (t *Table) Target() string {
	return t.target
}

// Convert converts an amount from the given currency into the target
// currency. Amounts already in the target currency pass through
// unchanged.
func (t *Table) Convert(amount float64, from string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	if from == t.target {
		return amount, nil
	}

	rate, ok := t.rates[from]
	if !ok {
		return 0, apperrors.Newf(apperrors.ErrValidation, "no conversion rate from %s to %s", from, t.target)
	}

	return amount * rate, nil
}

// Rate returns the configured rate from the given currency into the
// target currency.
func (t *Table) Rate(from string) (float64, bool) {
	from = strings.ToUpper(strings.TrimSpace(from))
	if from == t.target {
		return 1.0, true
	}
	rate, ok := t.rates[from]
	return rate, ok
}
