package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentbridge/gateway/internal/domain"
	"github.com/agentbridge/gateway/internal/server"
)

// HandleHealth reports upstream reachability. The probe is bounded by the
// client's health timeout; an elapsed timeout yields a deterministic
// unreachable result, never an error.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	result := h.client.CheckHealth(r.Context())
	server.AddLogField(r.Context(), "backend_status", result.Status)

	w.Header().Set("Content-Type", "application/json")
	if result.Status != domain.HealthHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(result)
		return
	}

	json.NewEncoder(w).Encode(struct {
		Status    string `json:"status"`
		Backend   string `json:"backend"`
		Timestamp string `json:"timestamp"`
	}{
		Status:    result.Status,
		Backend:   result.Backend,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
