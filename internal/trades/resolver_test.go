package trades

import (
	"testing"
	"time"

	"equity_monitor/internal/models"
)

func TestParseTradeTime_ValidTimestamp_Parses(t *testing.T) {
	got, err := ParseTradeTime("03/15/2025 14:30")
	if err != nil {
		t.Fatalf("ParseTradeTime failed: %v", err)
	}
	want := time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseTradeTime_MonthBeforeDay(t *testing.T) {
	// 03/04 must read as March 4th, not April 3rd
	got, err := ParseTradeTime("03/04/2025 09:00")
	if err != nil {
		t.Fatalf("ParseTradeTime failed: %v", err)
	}
	if got.Month() != time.March || got.Day() != 4 {
		t.Errorf("expected March 4th, got %v", got)
	}
}

func TestParseTradeTime_Garbage_ReturnsError(t *testing.T) {
	if _, err := ParseTradeTime("yesterday"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

func TestIsRealTrade_BuyAndSell_CaseInsensitive(t *testing.T) {
	for _, action := range []string{"Buy", "buy", "SELL", "Sell", "Buy Limit", "Sell Stop"} {
		if !IsRealTrade(models.HistoryEntry{Action: action, Symbol: "EURUSD"}) {
			t.Errorf("expected %q to be a real trade", action)
		}
	}
}

func TestIsRealTrade_BalanceOperations_Excluded(t *testing.T) {
	for _, action := range []string{"Deposit", "Withdrawal", "Balance", "Credit", "Rebate", ""} {
		if IsRealTrade(models.HistoryEntry{Action: action, Symbol: "EURUSD"}) {
			t.Errorf("expected %q to be excluded", action)
		}
	}
}

func TestIsRealTrade_BalanceMarkerInsideAction_Excluded(t *testing.T) {
	// the marker overrides the buy/sell mention
	if IsRealTrade(models.HistoryEntry{Action: "Buy Credit", Symbol: "EURUSD"}) {
		t.Error("expected marker to exclude the entry despite buy mention")
	}
}

func TestIsRealTrade_EmptySymbol_Excluded(t *testing.T) {
	if IsRealTrade(models.HistoryEntry{Action: "Buy", Symbol: ""}) {
		t.Error("expected empty-symbol entry to be excluded")
	}
	if IsRealTrade(models.HistoryEntry{Action: "Buy", Symbol: "   "}) {
		t.Error("expected blank-symbol entry to be excluded")
	}
}

func TestLastTrade_PicksLatestCloseTime(t *testing.T) {
	entries := []models.HistoryEntry{
		{Action: "Buy", Symbol: "EURUSD", CloseTime: "03/01/2025 14:30", Profit: 12.5},
		{Action: "Sell", Symbol: "GBPUSD", CloseTime: "03/03/2025 11:15", Profit: -4.2},
		{Action: "Buy", Symbol: "USDJPY", CloseTime: "03/02/2025 16:45", Profit: 7.0},
	}

	got, ok := LastTrade(entries)
	if !ok {
		t.Fatal("expected a last trade")
	}
	if got.Symbol != "GBPUSD" {
		t.Errorf("expected GBPUSD, got %s", got.Symbol)
	}
}

func TestLastTrade_DepositThenTrades_ReturnsLatestTrade(t *testing.T) {
	entries := []models.HistoryEntry{
		{Action: "Deposit", Symbol: "", CloseTime: ""},
		{Action: "Sell", Symbol: "EURUSD", CloseTime: "01/10/2026 10:00"},
		{Action: "Buy", Symbol: "GBPUSD", CloseTime: "01/10/2026 12:00"},
	}

	got, ok := LastTrade(entries)
	if !ok {
		t.Fatal("expected a last trade")
	}
	if got.Symbol != "GBPUSD" || got.Action != "Buy" {
		t.Errorf("expected the GBPUSD buy, got %+v", got)
	}
}

func TestLastTrade_EqualCloseTimes_LaterEntryWins(t *testing.T) {
	entries := []models.HistoryEntry{
		{Action: "Buy", Symbol: "FIRST", CloseTime: "03/01/2025 14:30", Profit: 1},
		{Action: "Sell", Symbol: "SECOND", CloseTime: "03/01/2025 14:30", Profit: 2},
	}

	got, ok := LastTrade(entries)
	if !ok {
		t.Fatal("expected a last trade")
	}
	if got.Symbol != "SECOND" {
		t.Errorf("expected later entry to win the tie, got %s", got.Symbol)
	}
}

func TestLastTrade_UnparseableCloseTime_FallsBackToOpenTime(t *testing.T) {
	entries := []models.HistoryEntry{
		{Action: "Buy", Symbol: "OLD", CloseTime: "03/01/2025 14:30", OpenTime: "03/01/2025 10:00"},
		{Action: "Sell", Symbol: "OPENFALLBACK", CloseTime: "n/a", OpenTime: "03/02/2025 09:00"},
	}

	got, ok := LastTrade(entries)
	if !ok {
		t.Fatal("expected a last trade")
	}
	if got.Symbol != "OPENFALLBACK" {
		t.Errorf("expected open-time fallback to win, got %s", got.Symbol)
	}
}

func TestLastTrade_NoParseableTimes_StillReturned(t *testing.T) {
	entries := []models.HistoryEntry{
		{Action: "Buy", Symbol: "ONLY", CloseTime: "", OpenTime: ""},
	}

	got, ok := LastTrade(entries)
	if !ok {
		t.Fatal("expected the sole surviving entry despite unparseable times")
	}
	if got.Symbol != "ONLY" {
		t.Errorf("unexpected entry %+v", got)
	}
}

func TestLastTrade_NoRealTrades_ReturnsFalse(t *testing.T) {
	entries := []models.HistoryEntry{
		{Action: "Deposit", Symbol: "", CloseTime: "03/01/2025 14:30", Profit: 500},
	}

	if _, ok := LastTrade(entries); ok {
		t.Error("expected no last trade for balance-only history")
	}
}

func TestLastTrade_EmptyHistory_ReturnsFalse(t *testing.T) {
	if _, ok := LastTrade(nil); ok {
		t.Error("expected no last trade for empty history")
	}
}

func TestLastTradeTime_ReturnsResolvedTimestamp(t *testing.T) {
	entries := []models.HistoryEntry{
		{Action: "Buy", Symbol: "EURUSD", CloseTime: "03/01/2025 14:30", Profit: 12.5},
	}

	got, ok := LastTradeTime(entries)
	if !ok {
		t.Fatal("expected a last trade time")
	}
	want := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
