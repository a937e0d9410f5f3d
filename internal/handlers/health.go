package handlers

import (
	"net/http"
	"runtime"
	"time"

	"mediadrop/internal/memory"
	"mediadrop/internal/metrics"
	"mediadrop/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Upload routes
	Signer   bool   `json:"signer"`
	Fallback string `json:"fallback,omitempty"`
	Servers  int    `json:"servers"`

	Memory  *memory.Stats  `json:"memory,omitempty"`
	History *metrics.Stats `json:"history,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the gateway. It is degraded when
// no upload route exists or memory admission is paused.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Signer:       h.blossom.HasSigner(),
		Fallback:     h.fallback,
		Servers:      len(h.blossom.Servers()),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if !response.Signer && response.Fallback == "" {
		response.Status = statusDegraded
	}
	if h.memory != nil {
		stats := h.memory.GetStats()
		response.Memory = &stats
		if stats.Paused {
			response.Status = statusDegraded
		}
	}
	if h.history != nil {
		stats := h.history.GetStats()
		response.History = &stats
	}

	writeJSONStatusCode(w, http.StatusOK, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
// GET /healthz
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 503 while uploads are being refused for memory.
// GET /readyz
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.memory != nil && h.memory.GetStats().Paused {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "not_ready"})
		return
	}
	writeJSONStatus(w, "ready")
}
