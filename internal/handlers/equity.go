package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"equity_monitor/internal/aggregator"
	"equity_monitor/internal/models"
	"equity_monitor/internal/repository"
)

const (
	// streamInterval is how often the SSE stream re-emits the tick.
	streamInterval = 5 * time.Second

	// defaultHistoryLimit bounds the chart backfill when the request
	// carries no limit. At the 5-second tick cadence this is about the
	// last 24 minutes of points.
	defaultHistoryLimit = 288
	maxHistoryLimit     = 5000
)

// EquityHandler serves the published equity tick and its history.
type EquityHandler struct {
	agg   *aggregator.Aggregator
	ticks *repository.EquityTickRepository
	now   func() time.Time
}

// NewEquityHandler creates a new EquityHandler. The tick repository may
// be nil when persistence is not wired.
func NewEquityHandler(agg *aggregator.Aggregator, ticks *repository.EquityTickRepository) *EquityHandler {
	return &EquityHandler{agg: agg, ticks: ticks, now: time.Now}
}

// currentTick returns the latest published tick, or an empty tick when
// the aggregator has not run yet.
func (h *EquityHandler) currentTick() models.EquityTick {
	if tick, ok := h.agg.Last(); ok {
		return tick
	}
	tick := models.NewEquityTick(h.now(), "")
	tick.Note = "no reading published yet"
	return tick
}

// Get returns the latest equity tick.
func (h *EquityHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.currentTick())
}

// History returns recorded ticks, oldest first.
func (h *EquityHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "limit must be a positive integer"})
			return
		}
		if parsed > maxHistoryLimit {
			parsed = maxHistoryLimit
		}
		limit = parsed
	}

	if h.ticks == nil {
		writeJSON(w, http.StatusOK, []models.EquityTick{})
		return
	}

	history, err := h.ticks.Recent(limit)
	if err != nil {
		// degrade like every other read path: empty, not 5xx
		log.Printf("[HTTP] loading equity history: %v", err)
		writeJSON(w, http.StatusOK, []models.EquityTick{})
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// Stream emits the equity tick over Server-Sent Events: once on connect,
// then every streamInterval until the client disconnects.
func (h *EquityHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if err := h.writeEvent(w, flusher); err != nil {
		return
	}

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := h.writeEvent(w, flusher); err != nil {
				return
			}
		}
	}
}

func (h *EquityHandler) writeEvent(w http.ResponseWriter, flusher http.Flusher) error {
	payload, err := json.Marshal(h.currentTick())
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
