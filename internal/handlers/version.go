package handlers

import (
	"net/http"

	"mediadrop/internal/startup"
)

// GetVersion returns the application version and build information
// GET /api/version
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
