// Package server exposes the agent over HTTP and WebSocket. It owns the
// session registry; transport framing stays thin and all conversation
// logic lives in the agent and memory packages.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tessellate-ai/loom/agent"
)

// Pinger reports backing-store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server handles HTTP and WebSocket chat traffic.
type Server struct {
	agent    *agent.Agent
	sessions *SessionRegistry
	health   Pinger
	logger   *slog.Logger
}

// New creates a Server.
func New(a *agent.Agent, health Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		agent:    a,
		sessions: NewSessionRegistry(),
		health:   health,
		logger:   logger,
	}
}

// Sessions exposes the session registry.
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	r.Get("/api/tools", s.handleTools)
	r.Delete("/api/sessions/{id}", s.handleEvictSession)
	r.Get("/ws", s.handleWebSocket)

	return r
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	session, ok := s.sessions.Get(req.SessionID)
	if !ok {
		session, _ = s.sessions.Create(req.SessionID)
		s.logger.Info("session created", "session_id", session.ID)
	}

	response, err := s.agent.ProcessMessage(r.Context(), session, req.Message)
	if err != nil {
		s.logger.Error("process message failed", "session_id", session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: response, SessionID: session.ID})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.agent.Tools().Available()})
}

func (s *Server) handleEvictSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Evict(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Info("session evicted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
