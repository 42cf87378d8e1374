package httptransport

import (
	"context"
	"net/http"
	"time"

	"regpay/pkg/platform/httputil"
)

// HealthResponse reports gateway liveness and backend reachability.
type HealthResponse struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream"`
}

// handleHealth probes the backend with a short deadline so the health check
// stays fast even when the backend is cold.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Upstream: "ok"}
	if err := h.client.Health(ctx); err != nil {
		resp.Upstream = "unreachable"
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
