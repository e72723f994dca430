package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"equity_monitor/internal/session"
)

// minSessionLength rejects obviously truncated tokens on the manual
// override path.
const minSessionLength = 8

// SessionHandler handles the manual session override.
type SessionHandler struct {
	store *session.Store
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(store *session.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

// setSessionRequest is the POST /api/set-session body.
type setSessionRequest struct {
	Session string `json:"session"`
}

// Set stores a manually supplied session token, persists it, and clears
// both backoff deadlines. This is the only path that clears backoffs.
func (h *SessionHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid JSON body"})
		return
	}

	token := strings.TrimSpace(req.Session)
	if len(token) < minSessionLength {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "session token missing or too short"})
		return
	}

	h.store.Set(token)
	h.store.ClearBackoffs()
	if err := h.store.Persist(); err != nil {
		log.Printf("[HTTP] persisting overridden session: %v", err)
	}

	log.Println("[HTTP] session token overridden manually")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
