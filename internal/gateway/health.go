package gateway

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string `json:"status"` // "ok" or "degraded"
	Scheduler bool   `json:"scheduler_running"`
	Provider  string `json:"provider,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when everything answers, 503 when the provider is down or
// the scheduler is stopped.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.scheduler != nil {
			resp.Scheduler = g.scheduler.Running()
			if !resp.Scheduler {
				resp.Status = "degraded"
			}
		}

		if g.health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			if err := g.health.HealthCheck(ctx); err != nil {
				resp.Provider = "unavailable"
				resp.Status = "degraded"
			} else {
				resp.Provider = "ok"
			}
			cancel()
		}

		status := http.StatusOK
		if resp.Status == "degraded" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
