package handlers

import (
	"log"
	"net/http"
	"time"

	"equity_monitor/internal/cache"
	"equity_monitor/internal/models"
	"equity_monitor/internal/trades"
)

// TradesHandler resolves the last real trade per tracked account index.
type TradesHandler struct {
	snapshot *cache.SnapshotCache
	history  *cache.HistoryCache
	indices  []int
	now      func() time.Time
}

// NewTradesHandler creates a new TradesHandler.
func NewTradesHandler(snapshot *cache.SnapshotCache, history *cache.HistoryCache, indices []int) *TradesHandler {
	return &TradesHandler{
		snapshot: snapshot,
		history:  history,
		indices:  indices,
		now:      time.Now,
	}
}

// lastTradesResponse is the /api/last-trades body.
type lastTradesResponse struct {
	OK    bool                   `json:"ok"`
	Ts    int64                  `json:"ts"`
	Items []models.LastTradeItem `json:"items"`
}

// List resolves the last trade for every tracked index. The response is
// always 200: a failed resolution yields ok:false with empty items so
// the dashboard keeps rendering.
func (h *TradesHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := lastTradesResponse{Ts: h.now().UnixMilli(), Items: []models.LastTradeItem{}}

	accounts, err := h.snapshot.EnsureFresh(r.Context())
	if err != nil {
		log.Printf("[HTTP] last-trades snapshot unavailable: %v", err)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	for _, idx := range h.indices {
		item := models.LastTradeItem{Index: idx}

		if idx < 0 || idx >= len(accounts) {
			resp.Items = append(resp.Items, item)
			continue
		}
		account := accounts[idx]

		entries, err := h.history.Get(r.Context(), account.ID)
		if err != nil {
			log.Printf("[HTTP] history for account %d unavailable: %v", account.ID, err)
			resp.Items = append(resp.Items, item)
			continue
		}

		trade, ok := trades.LastTrade(entries)
		if !ok {
			resp.Items = append(resp.Items, item)
			continue
		}

		profit := trade.Profit
		item.Profit = &profit
		currency := account.Currency
		item.Currency = &currency
		item.Action = trade.Action
		item.Symbol = trade.Symbol
		if at, ok := trades.LastTradeTime(entries); ok && !at.IsZero() {
			date := formatDisplayDate(at)
			item.Date = &date
		}

		resp.Items = append(resp.Items, item)
	}

	resp.OK = true
	writeJSON(w, http.StatusOK, resp)
}
