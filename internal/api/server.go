// Package api exposes the validation queue and analysis runner over
// HTTP, plus a server-sent-events stream of queue notifications.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"reviewq/pkg/analysis"
	"reviewq/pkg/bus"
	"reviewq/pkg/queue"
)

// Server is the HTTP API server.
type Server struct {
	coord    *queue.Coordinator
	runner   *analysis.Runner
	patterns analysis.PatternStore
	bus      *bus.Bus
	pageSize int
	mux      *http.ServeMux
}

// New creates a new Server. pageSize is the default queue page size when
// the request doesn't specify one.
func New(coord *queue.Coordinator, runner *analysis.Runner, patterns analysis.PatternStore, b *bus.Bus, pageSize int) *Server {
	if pageSize < 1 {
		pageSize = 20
	}
	s := &Server{
		coord:    coord,
		runner:   runner,
		patterns: patterns,
		bus:      b,
		pageSize: pageSize,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Queue
	s.mux.HandleFunc("GET /api/queue", s.handleQueueList)
	s.mux.HandleFunc("POST /api/queue", s.handleQueueCreate)
	s.mux.HandleFunc("POST /api/queue/claim", s.handleClaimNext)
	s.mux.HandleFunc("GET /api/queue/stream", s.handleStream)
	s.mux.HandleFunc("GET /api/queue/{id}", s.handleQueueGet)
	s.mux.HandleFunc("POST /api/queue/{id}/claim", s.handleClaim)
	s.mux.HandleFunc("POST /api/queue/{id}/release", s.handleRelease)
	s.mux.HandleFunc("POST /api/queue/{id}/submit", s.handleSubmit)

	// Analysis
	s.mux.HandleFunc("POST /api/analysis/trigger", s.handleAnalysisTrigger)
	s.mux.HandleFunc("GET /api/analysis/status/{id}", s.handleAnalysisStatus)
	s.mux.HandleFunc("GET /api/patterns", s.handlePatternList)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.coord.Stats(r.Context())
	if err != nil {
		writeError(w, 500, "internal", err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{
		"queue":       stats,
		"subscribers": s.bus.SubscriberCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

// errorBody is the wire form of a failed request. Code identifies the
// business outcome so clients can map it back to a typed error.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// writeQueueError maps queue business outcomes to HTTP statuses and
// stable codes. EmptyQueue is handled at its call site; it is an
// outcome, not an error.
func writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		writeError(w, 404, "not_found", err.Error())
	case errors.Is(err, queue.ErrAlreadyClaimed):
		writeError(w, 409, "already_claimed", err.Error())
	case errors.Is(err, queue.ErrNotOwner):
		writeError(w, 409, "not_owner", err.Error())
	case errors.Is(err, queue.ErrNotClaimed):
		writeError(w, 409, "not_claimed", err.Error())
	case errors.Is(err, queue.ErrInvalidDecision):
		writeError(w, 400, "invalid_decision", err.Error())
	default:
		writeError(w, 500, "internal", err.Error())
	}
}

// reviewer extracts the caller's identity. Authentication is out of
// scope; the header value is only the claim key.
func reviewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-Reviewer")
	if id == "" {
		writeError(w, 400, "missing_reviewer", "X-Reviewer header is required")
		return "", false
	}
	return id, true
}
