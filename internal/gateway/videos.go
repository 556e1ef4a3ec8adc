package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/replyloop/replyloop/internal/source"
	"github.com/replyloop/replyloop/internal/store"
)

// handleListVideos returns all tracked videos, oldest first.
func (g *Gateway) handleListVideos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.videos == nil {
			http.Error(w, "store not available", http.StatusServiceUnavailable)
			return
		}

		videos, err := g.videos.List(r.Context())
		if err != nil {
			g.logger.Error("list videos failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if videos == nil {
			videos = []store.Video{}
		}
		writeJSON(w, http.StatusOK, videos)
	}
}

// trackVideoRequest is the JSON body for POST /api/videos.
type trackVideoRequest struct {
	VideoID string `json:"video_id"`
}

// handleTrackVideo registers a video for comment polling. Tracking an
// already-tracked video returns its current record with 200.
func (g *Gateway) handleTrackVideo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.tracker == nil {
			http.Error(w, "video source not available", http.StatusServiceUnavailable)
			return
		}

		var req trackVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VideoID == "" {
			http.Error(w, "video_id required", http.StatusBadRequest)
			return
		}

		video, err := g.tracker.Track(r.Context(), req.VideoID)
		switch {
		case errors.Is(err, source.ErrNotFound):
			http.Error(w, "video not found", http.StatusNotFound)
			return
		case err != nil:
			g.logger.Error("track video failed", "video", req.VideoID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, video)
	}
}

// handleListComments returns the stored comments for one video, newest first.
func (g *Gateway) handleListComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.comments == nil {
			http.Error(w, "store not available", http.StatusServiceUnavailable)
			return
		}

		id := chi.URLParam(r, "id")
		comments, err := g.comments.ListByVideo(r.Context(), id)
		if err != nil {
			g.logger.Error("list comments failed", "video", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if comments == nil {
			comments = []store.Comment{}
		}
		writeJSON(w, http.StatusOK, comments)
	}
}

// handleListDrafts returns generated drafts, newest first.
func (g *Gateway) handleListDrafts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.drafts == nil {
			http.Error(w, "store not available", http.StatusServiceUnavailable)
			return
		}

		drafts, err := g.drafts.ListDrafts(r.Context())
		if err != nil {
			g.logger.Error("list drafts failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if drafts == nil {
			drafts = []store.Draft{}
		}
		writeJSON(w, http.StatusOK, drafts)
	}
}

// conversationResponse is the JSON shape for GET /api/conversations/{id}.
type conversationResponse struct {
	Conversation store.Conversation `json:"conversation"`
	Messages     []store.Message    `json:"messages"`
}

// handleGetConversation returns one conversation with its recent messages.
func (g *Gateway) handleGetConversation() http.HandlerFunc {
	const messageWindow = 50

	return func(w http.ResponseWriter, r *http.Request) {
		if g.conversations == nil {
			http.Error(w, "store not available", http.StatusServiceUnavailable)
			return
		}

		id := chi.URLParam(r, "id")
		conv, err := g.conversations.GetConversation(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		case err != nil:
			g.logger.Error("get conversation failed", "conversation", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		messages, err := g.conversations.RecentMessages(r.Context(), id, messageWindow)
		if err != nil {
			g.logger.Error("get messages failed", "conversation", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if messages == nil {
			messages = []store.Message{}
		}

		writeJSON(w, http.StatusOK, conversationResponse{
			Conversation: conv,
			Messages:     messages,
		})
	}
}
