package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"mediadrop/internal/database"
	"mediadrop/internal/digest"
	"mediadrop/internal/logging"

	"github.com/gorilla/mux"
)

// ListUploads returns recent uploads, newest first.
// GET /api/uploads?limit=N
func (h *Handlers) ListUploads(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, "Upload history is disabled", http.StatusServiceUnavailable)
		return
	}

	limit := database.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	uploads, err := h.history.ListUploads(r.Context(), limit)
	if err != nil {
		logging.Error("Failed to list uploads: %v", err)
		writeJSONError(w, "Failed to list uploads", http.StatusInternalServerError)
		return
	}
	writeJSONStatusCode(w, http.StatusOK, uploads)
}

// GetUpload returns every history record for one digest.
// GET /api/uploads/{sha256}
func (h *Handlers) GetUpload(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, "Upload history is disabled", http.StatusServiceUnavailable)
		return
	}

	d, err := digest.Parse(mux.Vars(r)["sha256"])
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	uploads, err := h.history.FindByDigest(r.Context(), d.String())
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "No upload recorded for "+d.Short(), http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to look up %s: %v", d.Short(), err)
		writeJSONError(w, "Failed to look up upload", http.StatusInternalServerError)
		return
	}
	writeJSONStatusCode(w, http.StatusOK, uploads)
}
