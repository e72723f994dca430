package handlers

import (
	"log"
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
)

// SystemHandler serves the health probe and the mobile hand-off QR code.
type SystemHandler struct {
	publicURL string
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(publicURL string) *SystemHandler {
	return &SystemHandler{publicURL: publicURL}
}

// Health answers the liveness probe.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MobileQR renders the dashboard URL as a PNG QR code so the dashboard
// can be opened on a phone.
func (h *SystemHandler) MobileQR(w http.ResponseWriter, r *http.Request) {
	if h.publicURL == "" {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "no public URL configured"})
		return
	}

	png, err := qrcode.Encode(h.publicURL, qrcode.Medium, 256)
	if err != nil {
		log.Printf("[HTTP] generating QR code: %v", err)
		http.Error(w, "QR generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
