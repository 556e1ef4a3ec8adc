package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	// Admin endpoints — auth required. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/jobs", g.handleListJobs())
				r.Post("/jobs/{name}/run", g.handleRunJob())
				r.Get("/jobs/{name}/settings", g.handleGetSettings())
				r.Put("/jobs/{name}/settings", g.handlePutSettings())
				r.Post("/jobs/{name}/chat", g.handleChat())
				r.Get("/jobs/{name}/chat/ws", g.handleChatWS())
				r.Get("/videos", g.handleListVideos())
				r.Post("/videos", g.handleTrackVideo())
				r.Get("/videos/{id}/comments", g.handleListComments())
				r.Get("/drafts", g.handleListDrafts())
				r.Get("/conversations/{id}", g.handleGetConversation())
			})
		})
	}

	return r
}

// writeJSON is the shared happy-path response helper.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
