package handlers

import (
	"net/http"

	"equity_monitor/internal/cache"
	"equity_monitor/internal/session"
)

// Poller states as shown on the dashboard.
const (
	StateActive  = "ACTIVE"
	StateWaiting = "WAITING"
	StateStopped = "STOPPED"
)

// StatusHandler reports the poller's health to the dashboard.
type StatusHandler struct {
	store    *session.Store
	snapshot *cache.SnapshotCache
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(store *session.Store, snapshot *cache.SnapshotCache) *StatusHandler {
	return &StatusHandler{store: store, snapshot: snapshot}
}

// statusResponse is the /api/status body.
type statusResponse struct {
	State        string `json:"state"`
	Message      string `json:"message"`
	BlockedUntil *int64 `json:"blockedUntil"` // unix ms, null when not blocked
	HasSession   bool   `json:"hasSession"`
	CachedCount  int    `json:"cachedCount"`
	CachedTs     *int64 `json:"cachedTs"` // unix ms, null before first fetch
}

// Get returns the current poller status.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{State: StateActive, Message: "polling"}

	hasSession := h.store.Token() != ""
	resp.HasSession = hasSession

	if until, blocked := h.store.Blocked(); blocked {
		ms := until.UnixMilli()
		resp.BlockedUntil = &ms
	}

	if accounts, ok := h.snapshot.Current(); ok {
		resp.CachedCount = len(accounts)
	}
	if fetchedAt, ok := h.snapshot.FetchedAt(); ok {
		ms := fetchedAt.UnixMilli()
		resp.CachedTs = &ms
	}

	// STOPPED: backoff active with nothing to serve. WAITING: no session
	// and no backoff. Anything else still has data flowing, so ACTIVE.
	switch {
	case resp.BlockedUntil != nil && !hasSession && resp.CachedCount == 0:
		resp.State = StateStopped
		resp.Message = "polling suspended by backoff, no session or cached data"
	case !hasSession && resp.BlockedUntil == nil:
		resp.State = StateWaiting
		resp.Message = "waiting for session"
	}

	writeJSON(w, http.StatusOK, resp)
}
