// Package handlers provides the HTTP surface for the equity monitor.
// Read endpoints are backed by cached state and never answer 5xx; the
// dashboard always receives a well-formed JSON body.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// displayDateLayout is the dashboard's date rendering, e.g.
// "01.03.2025. 14:30h".
const displayDateLayout = "02.01.2006. 15:04"

// writeJSON serializes v into the response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] encoding response: %v", err)
	}
}

// formatDisplayDate renders a timestamp the way the dashboard shows it.
func formatDisplayDate(t time.Time) string {
	return t.Format(displayDateLayout) + "h"
}
