// Package trades finds the most recent closed trade in an account's
// history. Balance operations share the history feed with trades, so
// entries are filtered to real buy/sell positions first.
package trades

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"equity_monitor/internal/models"
)

// tradeTimeLayout matches the upstream's MM/DD/YYYY HH:mm timestamps.
const tradeTimeLayout = "01/02/2006 15:04"

// balanceMarkers flag history entries that move money rather than open
// positions. An entry whose action mentions any of these is noise.
var balanceMarkers = []string{"deposit", "withdrawal", "balance", "credit", "rebate"}

// ParseTradeTime parses an upstream trade timestamp.
func ParseTradeTime(s string) (time.Time, error) {
	return time.Parse(tradeTimeLayout, strings.TrimSpace(s))
}

// IsRealTrade reports whether a history entry is an actual position:
// it has a symbol, its action mentions buy or sell, and it carries no
// balance-operation marker.
func IsRealTrade(entry models.HistoryEntry) bool {
	if strings.TrimSpace(entry.Symbol) == "" {
		return false
	}
	action := strings.ToLower(entry.Action)
	if !strings.Contains(action, "buy") && !strings.Contains(action, "sell") {
		return false
	}
	for _, marker := range balanceMarkers {
		if strings.Contains(action, marker) {
			return false
		}
	}
	return true
}

// resolveTime computes an entry's ordering timestamp: close time when it
// parses, else open time, else the zero time so the entry sorts first
// but is never dropped.
func resolveTime(entry models.HistoryEntry) time.Time {
	if closedAt, err := ParseTradeTime(entry.CloseTime); err == nil {
		return closedAt
	}
	if openedAt, err := ParseTradeTime(entry.OpenTime); err == nil {
		return openedAt
	}
	return time.Time{}
}

// LastTrade returns the real trade with the latest resolved timestamp.
// When several trades share the latest timestamp, the one appearing
// later in the history wins. Returns false when no entry survives the
// filter.
func LastTrade(entries []models.HistoryEntry) (models.HistoryEntry, bool) {
	real := lo.Filter(entries, func(entry models.HistoryEntry, _ int) bool {
		return IsRealTrade(entry)
	})
	if len(real) == 0 {
		return models.HistoryEntry{}, false
	}

	best := real[0]
	bestAt := resolveTime(best)
	for _, entry := range real[1:] {
		if at := resolveTime(entry); !at.Before(bestAt) {
			best = entry
			bestAt = at
		}
	}
	return best, true
}

// LastTradeTime returns the resolved timestamp of the last trade.
func LastTradeTime(entries []models.HistoryEntry) (time.Time, bool) {
	entry, ok := LastTrade(entries)
	if !ok {
		return time.Time{}, false
	}
	return resolveTime(entry), true
}
