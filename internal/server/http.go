package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rishabhpillay/transcript-server/internal/config"
	"github.com/rishabhpillay/transcript-server/internal/ingest"
	"github.com/rishabhpillay/transcript-server/internal/metrics"
	"github.com/rishabhpillay/transcript-server/internal/session"
	"github.com/rishabhpillay/transcript-server/internal/transcript"
)

// HTTPServer provides the HTTP API for chunk ingestion and session reads
type HTTPServer struct {
	server       *http.Server
	logger       *slog.Logger
	config       *config.Config
	orchestrator *ingest.Orchestrator
	metrics      *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg *config.Config, logger *slog.Logger,
	orchestrator *ingest.Orchestrator, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:       logger,
		config:       cfg,
		orchestrator: orchestrator,
		metrics:      m,
		startTime:    time.Now(),
	}

	router := mux.NewRouter()
	h.setupRoutes(router)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(router *mux.Router) {
	// Ingestion endpoint
	router.HandleFunc("/api/ingest/chunk", h.withMetrics("/api/ingest/chunk", h.handleIngestChunk)).Methods(http.MethodPost)

	// Session read endpoints
	router.HandleFunc("/api/sessions", h.withMetrics("/api/sessions", h.handleSessions)).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{id}", h.withMetrics("/api/sessions/{id}", h.handleSessionDetail)).Methods(http.MethodGet)

	// Websocket progress feed
	router.HandleFunc("/ws/sessions/{id}", h.handleSessionProgress)

	// Health check endpoint
	router.HandleFunc("/health", h.withMetrics("/health", h.handleHealth)).Methods(http.MethodGet)

	// Statistics endpoint
	router.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats)).Methods(http.MethodGet)

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	router.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	router.HandleFunc("/", h.withMetrics("/", h.handleRoot)).Methods(http.MethodGet)
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// ingestResponse is the body returned for a consolidated chunk
type ingestResponse struct {
	Session   *sessionView `json:"session"`
	Created   bool         `json:"created"`
	Completed bool         `json:"completed"`
	Duplicate bool         `json:"duplicate"`
	Degraded  []string     `json:"degraded,omitempty"`
}

// handleIngestChunk implements POST /api/ingest/chunk. The chunk arrives as
// a multipart form: "chunk" carries the audio bytes, "sequence" the 1-based
// chunk number, optional "session_id", "last_chunk" and "mime_type" fields.
func (h *HTTPServer) handleIngestChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.HTTP.MaxChunkBytes())

	if err := r.ParseMultipartForm(h.config.HTTP.MaxChunkBytes()); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	sequence, err := strconv.Atoi(r.FormValue("sequence"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "sequence must be an integer")
		return
	}

	lastChunk := false
	if v := r.FormValue("last_chunk"); v != "" {
		lastChunk, err = strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "last_chunk must be a boolean")
			return
		}
	}

	file, header, err := r.FormFile("chunk")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "multipart field 'chunk' is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read chunk: %v", err))
		return
	}

	mimeType := r.FormValue("mime_type")
	if mimeType == "" {
		mimeType = header.Header.Get("Content-Type")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	result, err := h.orchestrator.ProcessChunk(r.Context(), ingest.Chunk{
		SessionID: r.FormValue("session_id"),
		Sequence:  sequence,
		IsFinal:   lastChunk,
		MimeType:  mimeType,
		Audio:     audio,
	})
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrEmptyAudio), errors.Is(err, ingest.ErrInvalidSequence),
			errors.Is(err, session.ErrInvalidID):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ingest.ErrSessionComplete):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("Chunk ingestion failed",
				slog.String("session_id", r.FormValue("session_id")),
				slog.Int("sequence", sequence),
				slog.String("error", err.Error()),
			)
			h.writeError(w, http.StatusBadGateway, "chunk processing failed")
		}
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, ingestResponse{
		Session:   newSessionView(result.Session),
		Created:   result.Created,
		Completed: result.Completed,
		Duplicate: result.Duplicate,
		Degraded:  result.Degraded,
	})
}

// handleSessions implements GET /api/sessions
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.orchestrator.ListSessions(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	views := make([]*sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, newSessionView(s))
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_sessions": len(views),
		"timestamp":      time.Now().UTC(),
		"sessions":       views,
	})
}

// handleSessionDetail implements GET /api/sessions/{id}
func (h *HTTPServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s, err := h.orchestrator.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	h.writeJSON(w, http.StatusOK, newSessionView(s))
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "transcript-server",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"storage": map[string]interface{}{
				"status":  "running",
				"backend": h.config.Storage.Backend,
			},
			"diarization": map[string]interface{}{
				"enabled": h.config.Diarization.Enabled,
			},
			"text_merge": map[string]interface{}{
				"enabled": h.config.TextMerge.Enabled,
			},
		},
	}

	h.writeJSON(w, http.StatusOK, health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.orchestrator.ListSessions(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	var completed, lines, actions int
	for _, s := range sessions {
		if s.IsComplete {
			completed++
		}
		lines += len(s.Transcript)
		actions += len(s.Actions)
	}

	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"sessions": map[string]interface{}{
			"total":     len(sessions),
			"completed": completed,
			"active":    len(sessions) - completed,
		},
		"transcript": map[string]interface{}{
			"total_lines":   lines,
			"total_actions": actions,
		},
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}

	doc := map[string]interface{}{
		"service": "transcript-server",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"POST /api/ingest/chunk": "Submit an audio chunk for consolidation (multipart form)",
			"GET /api/sessions":      "List all sessions, newest first",
			"GET /api/sessions/{id}": "Full session document",
			"GET /ws/sessions/{id}":  "Websocket progress feed for one session",
			"GET /health":            "Health check",
			"GET /stats":             "Service statistics",
			"GET /metrics":           "Prometheus metrics",
		},
	}

	h.writeJSON(w, http.StatusOK, doc)
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// sessionView is the wire representation of a session. The transcript is
// presented in chunk order; the stored order reflects arrival, which can
// differ when chunks were submitted concurrently.
type sessionView struct {
	ID         string            `json:"id"`
	Transcript []transcript.Line `json:"transcript"`
	Speakers   []string          `json:"speakers"`
	Summary    string            `json:"summary"`
	Actions    []string          `json:"actions"`
	Chunks     int               `json:"chunks"`
	IsComplete bool              `json:"is_complete"`
	Version    uint64            `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func newSessionView(s *session.Session) *sessionView {
	lines := make([]transcript.Line, len(s.Transcript))
	copy(lines, s.Transcript)
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].SourceSequence < lines[j].SourceSequence
	})

	return &sessionView{
		ID:         s.ID,
		Transcript: lines,
		Speakers:   s.Speakers,
		Summary:    s.Summary,
		Actions:    s.Actions,
		Chunks:     len(s.AudioChunks),
		IsComplete: s.IsComplete,
		Version:    s.Version,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}
