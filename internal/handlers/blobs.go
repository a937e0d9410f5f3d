package handlers

import (
	"errors"
	"net/http"

	"mediadrop/internal/authz"
	"mediadrop/internal/blossom"
	"mediadrop/internal/digest"
	"mediadrop/internal/logging"

	"github.com/gorilla/mux"
)

// DeleteResponse reports a delete across servers and the local history.
type DeleteResponse struct {
	SHA256         digest.Digest          `json:"sha256"`
	Servers        []blossom.DeleteResult `json:"servers"`
	HistoryRemoved int64                  `json:"historyRemoved"`
}

// DeleteBlob removes a blob from every configured server and forgets it
// locally. Per-server failures are reported, not fatal.
// DELETE /api/blobs/{sha256}
func (h *Handlers) DeleteBlob(w http.ResponseWriter, r *http.Request) {
	d, err := digest.Parse(mux.Vars(r)["sha256"])
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := h.blossom.DeleteEverywhere(r.Context(), d)
	if errors.Is(err, authz.ErrMissingSigner) {
		writeJSONError(w, "No signing key is configured", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		logging.Error("Delete of %s failed: %v", d.Short(), err)
		writeJSONError(w, "Delete failed", http.StatusBadGateway)
		return
	}

	resp := DeleteResponse{SHA256: d, Servers: results}
	if h.history != nil {
		removed, err := h.history.DeleteByDigest(r.Context(), d.String())
		if err != nil {
			logging.Warn("Failed to remove %s from history: %v", d.Short(), err)
		}
		resp.HistoryRemoved = removed
	}

	writeJSONStatusCode(w, http.StatusOK, resp)
}

// ServersResponse describes where uploads go.
type ServersResponse struct {
	Servers  []blossom.Server `json:"servers"`
	Signer   bool             `json:"signer"`
	Fallback string           `json:"fallback,omitempty"`
}

// GetServers returns the resolved server list.
// GET /api/servers
func (h *Handlers) GetServers(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatusCode(w, http.StatusOK, ServersResponse{
		Servers:  h.blossom.Servers(),
		Signer:   h.blossom.HasSigner(),
		Fallback: h.fallback,
	})
}
