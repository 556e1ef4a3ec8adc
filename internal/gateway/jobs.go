package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/replyloop/replyloop/internal/cron"
)

// handleListJobs returns all registered jobs with their run state.
func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jobs := []cron.JobStatus{}
		if g.scheduler != nil {
			jobs = g.scheduler.Snapshot()
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

// handleRunJob triggers a job immediately. The request body, if present,
// is a JSON object merged into the job's params for this run only.
func (g *Gateway) handleRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.scheduler == nil {
			http.Error(w, "scheduler not available", http.StatusServiceUnavailable)
			return
		}

		name := chi.URLParam(r, "name")

		var extra map[string]any
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&extra); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
		}

		outcome, err := g.scheduler.RunNow(r.Context(), name, extra)
		switch {
		case errors.Is(err, cron.ErrUnknownJob):
			http.Error(w, "job not found", http.StatusNotFound)
			return
		case errors.Is(err, cron.ErrJobBusy):
			http.Error(w, "job already running", http.StatusConflict)
			return
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, outcome)
			return
		}

		writeJSON(w, http.StatusOK, outcome)
	}
}

// handleGetSettings returns the persisted settings for one job.
func (g *Gateway) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.settings == nil {
			http.Error(w, "settings not available", http.StatusServiceUnavailable)
			return
		}

		name := chi.URLParam(r, "name")
		values, err := g.settings.All(r.Context(), name)
		if err != nil {
			g.logger.Error("list settings failed", "job", name, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if values == nil {
			values = map[string]json.RawMessage{}
		}
		writeJSON(w, http.StatusOK, values)
	}
}

// handlePutSettings upserts settings for one job. The body is a JSON
// object; each entry becomes one job-scoped setting.
func (g *Gateway) handlePutSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.settings == nil {
			http.Error(w, "settings not available", http.StatusServiceUnavailable)
			return
		}

		name := chi.URLParam(r, "name")

		var values map[string]any
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(values) == 0 {
			http.Error(w, "empty settings object", http.StatusBadRequest)
			return
		}

		if err := g.settings.SetAll(r.Context(), name, values); err != nil {
			g.logger.Error("save settings failed", "job", name, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
