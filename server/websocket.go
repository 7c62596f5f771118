package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsInbound struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type wsOutbound struct {
	Type      string `json:"type"`
	Response  string `json:"response,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleWebSocket runs one chat connection. Each connection gets its own
// uuid-keyed session unless the client names an existing one, and the
// session is evicted when the connection closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session, _ := s.sessions.Create(uuid.New().String())
	defer s.sessions.Evict(session.ID)
	s.logger.Info("websocket connected", "session_id", session.ID)

	if err := conn.WriteJSON(wsOutbound{Type: "connected", SessionID: session.ID}); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("websocket closed", "session_id", session.ID)
			return
		}

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil {
			_ = conn.WriteJSON(wsOutbound{Type: "error", Error: "invalid JSON message"})
			continue
		}
		if in.Message == "" {
			_ = conn.WriteJSON(wsOutbound{Type: "error", Error: "message is required"})
			continue
		}

		target := session
		if in.SessionID != "" && in.SessionID != session.ID {
			if existing, ok := s.sessions.Get(in.SessionID); ok {
				target = existing
			}
		}

		response, err := s.agent.ProcessMessage(r.Context(), target, in.Message)
		if err != nil {
			s.logger.Error("process message failed", "session_id", target.ID, "error", err)
			_ = conn.WriteJSON(wsOutbound{Type: "error", Error: err.Error(), SessionID: target.ID})
			continue
		}

		if err := conn.WriteJSON(wsOutbound{Type: "response", Response: response, SessionID: target.ID}); err != nil {
			return
		}
	}
}
