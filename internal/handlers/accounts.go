package handlers

import (
	"net/http"

	"equity_monitor/internal/cache"
	"equity_monitor/internal/models"
)

// AccountsHandler serves the cached account snapshot.
type AccountsHandler struct {
	snapshot *cache.SnapshotCache
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(snapshot *cache.SnapshotCache) *AccountsHandler {
	return &AccountsHandler{snapshot: snapshot}
}

// List returns the current account snapshot. A freshness check runs
// first, best effort; the response is the cached list either way and is
// empty (not an error) when nothing was ever fetched.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	// ignore the error: a failed refresh still leaves the last good copy
	h.snapshot.EnsureFresh(r.Context())

	accounts, ok := h.snapshot.Current()
	if !ok {
		writeJSON(w, http.StatusOK, []models.Account{})
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}
