package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/replyloop/replyloop/internal/chat"
)

// chatRequest is the JSON body for POST /api/jobs/{name}/chat and the
// first frame on the chat WebSocket.
type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// chatEvent is one frame of a streamed chat response. Content chunks
// arrive first; the final frame carries Done with the conversation ID.
type chatEvent struct {
	Type           string `json:"type"` // "chunk", "done" or "error"
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Reply          string `json:"reply,omitempty"`
	Error          string `json:"error,omitempty"`
}

// handleChat streams a chat exchange as server-sent events.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.chat == nil {
			http.Error(w, "chat not available", http.StatusServiceUnavailable)
			return
		}

		job := chi.URLParam(r, "name")

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
			http.Error(w, "message required", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")

		streaming := false
		emit := func(chunk string) error {
			streaming = true
			if err := writeSSE(w, chatEvent{Type: "chunk", Content: chunk}); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		}

		result, err := g.chat.Send(r.Context(), job, req.ConversationID, req.Message, emit)
		if err != nil {
			if !streaming {
				// Nothing written yet, a plain HTTP error is still possible.
				if errors.Is(err, chat.ErrUnknownJob) {
					http.Error(w, "job not found", http.StatusNotFound)
					return
				}
				g.logger.Error("chat failed", "job", job, "error", err)
				http.Error(w, "chat failed", http.StatusBadGateway)
				return
			}
			_ = writeSSE(w, chatEvent{Type: "error", Error: "chat failed"})
			flusher.Flush()
			return
		}

		_ = writeSSE(w, chatEvent{
			Type:           "done",
			ConversationID: result.ConversationID,
			Reply:          result.Reply,
		})
		flusher.Flush()
	}
}

// writeSSE writes one event in text/event-stream framing.
func writeSSE(w http.ResponseWriter, ev chatEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// handleChatWS streams a chat exchange over a WebSocket. The client sends
// one chatRequest frame; the server answers with chunk frames and a final
// done frame, then closes.
func (g *Gateway) handleChatWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.chat == nil {
			http.Error(w, "chat not available", http.StatusServiceUnavailable)
			return
		}

		job := chi.URLParam(r, "name")

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		ctx := r.Context()

		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var req chatRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Message == "" {
			g.writeWS(ctx, conn, chatEvent{Type: "error", Error: "message required"})
			_ = conn.Close(websocket.StatusUnsupportedData, "invalid request")
			return
		}

		emit := func(chunk string) error {
			return g.writeWS(ctx, conn, chatEvent{Type: "chunk", Content: chunk})
		}

		result, err := g.chat.Send(ctx, job, req.ConversationID, req.Message, emit)
		if err != nil {
			msg := "chat failed"
			if errors.Is(err, chat.ErrUnknownJob) {
				msg = "job not found"
			} else {
				g.logger.Error("chat failed", "job", job, "error", err)
			}
			g.writeWS(ctx, conn, chatEvent{Type: "error", Error: msg})
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		g.writeWS(ctx, conn, chatEvent{
			Type:           "done",
			ConversationID: result.ConversationID,
			Reply:          result.Reply,
		})
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

func (g *Gateway) writeWS(ctx context.Context, conn *websocket.Conn, ev chatEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
