package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/rishabhpillay/transcript-server/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// progressMessage is one websocket frame on the session progress feed.
type progressMessage struct {
	Type       string       `json:"type"`
	SessionID  string       `json:"session_id"`
	Lines      int          `json:"lines,omitempty"`
	Speakers   int          `json:"speakers,omitempty"`
	Chunks     int          `json:"chunks,omitempty"`
	HasSummary bool         `json:"has_summary,omitempty"`
	Version    uint64       `json:"version,omitempty"`
	IsComplete bool         `json:"is_complete,omitempty"`
	Session    *sessionView `json:"session,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// handleSessionProgress implements GET /ws/sessions/{id}. The feed emits a
// progress frame whenever the session version changes and a final frame
// carrying the full document when the session completes, then closes.
func (h *HTTPServer) handleSessionProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger := h.logger.With(slog.String("session_id", id))

	// The upgrade hijacks the connection, so the request context does not
	// end when the client goes away. A reader goroutine notices the close
	// frame (or a dead peer) and cancels the polling loop.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastVersion uint64
	var sentAny bool

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := h.orchestrator.GetSession(ctx, id)
			if err != nil {
				if errors.Is(err, session.ErrNotFound) {
					// The session may simply not exist yet; keep waiting.
					continue
				}
				h.sendProgress(conn, progressMessage{
					Type:      "error",
					SessionID: id,
					Error:     err.Error(),
				})
				return
			}

			if sentAny && s.Version == lastVersion {
				continue
			}
			lastVersion = s.Version
			sentAny = true

			if s.IsComplete {
				h.sendProgress(conn, progressMessage{
					Type:      "session_complete",
					SessionID: id,
					Version:   s.Version,
					Session:   newSessionView(s),
				})
				logger.Info("Progress feed finished")
				return
			}

			if err := h.sendProgress(conn, progressMessage{
				Type:       "progress",
				SessionID:  id,
				Lines:      len(s.Transcript),
				Speakers:   len(s.Speakers),
				Chunks:     len(s.AudioChunks),
				HasSummary: s.Summary != "",
				Version:    s.Version,
			}); err != nil {
				return
			}
		}
	}
}

func (h *HTTPServer) sendProgress(conn *websocket.Conn, msg progressMessage) error {
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("Failed to write websocket frame", slog.String("error", err.Error()))
		return err
	}
	return nil
}
