// Package models contains the data structures shared across the application.
package models

import "time"

// Account is one trading account as reported by the upstream account list.
type Account struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Currency    string  `json:"currency"`
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Profit      float64 `json:"profit"`
	GainPercent float64 `json:"gain"`
}

// HistoryEntry is one past transaction from the upstream trade history.
// Deposits, withdrawals and other balance operations appear here too;
// only entries with a symbol and a buy/sell action are real trades.
type HistoryEntry struct {
	Action    string  `json:"action"`
	Symbol    string  `json:"symbol"`
	OpenTime  string  `json:"openTime"`
	CloseTime string  `json:"closeTime"`
	Profit    float64 `json:"profit"`
}

// Contribution is one tracked account's share of an equity tick.
// Amount and Converted are nil when the account is unavailable or its
// currency has no configured rate; Note explains which.
type Contribution struct {
	Index     int      `json:"index"`
	AccountID int64    `json:"accountId,omitempty"`
	Amount    *float64 `json:"amount"`
	Currency  string   `json:"currency,omitempty"`
	Converted *float64 `json:"converted"`
	Note      string   `json:"note,omitempty"`
}

// EquityTick is the aggregator's published result. Total is nil when no
// tracked account produced a convertible amount; Note says why. The tick
// is always replaced as a whole, never patched field by field.
type EquityTick struct {
	Timestamp int64          `json:"t"` // unix milliseconds
	Total     *float64       `json:"equity"`
	Currency  string         `json:"currency"`
	Note      string         `json:"note,omitempty"`
	Breakdown []Contribution `json:"breakdown,omitempty"`
}

// NewEquityTick builds a tick stamped at the given time.
func NewEquityTick(at time.Time, currency string) EquityTick {
	return EquityTick{
		Timestamp: at.UnixMilli(),
		Currency:  currency,
	}
}

// LastTradeItem is one row of the /api/last-trades response.
type LastTradeItem struct {
	Index    int      `json:"index"`
	Profit   *float64 `json:"profit"`
	Date     *string  `json:"date"`
	Currency *string  `json:"currency"`
	Action   string   `json:"action,omitempty"`
	Symbol   string   `json:"symbol,omitempty"`
}
