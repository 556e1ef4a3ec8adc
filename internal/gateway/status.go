package gateway

import (
	"net/http"
	"time"

	"github.com/replyloop/replyloop/internal/cron"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    float64          `json:"uptime_seconds"`
	Scheduler bool             `json:"scheduler_running"`
	Jobs      []cron.JobStatus `json:"jobs"`
	Comments  int              `json:"comments_total"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Uptime: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			Jobs:   []cron.JobStatus{},
		}

		if g.scheduler != nil {
			resp.Scheduler = g.scheduler.Running()
			resp.Jobs = g.scheduler.Snapshot()
		}

		if g.comments != nil {
			if n, err := g.comments.Count(r.Context()); err == nil {
				resp.Comments = n
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
