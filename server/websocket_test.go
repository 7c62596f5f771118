package server_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type wsFrame struct {
	Type      string `json:"type"`
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame wsFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestWebSocket_ChatRoundTrip(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{response: "socket answer"}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn := dialWS(t, ts)

	// Each connection is greeted with its own session id.
	connected := readFrame(t, conn)
	if connected.Type != "connected" || connected.SessionID == "" {
		t.Fatalf("greeting frame = %+v", connected)
	}
	if srv.Sessions().Len() != 1 {
		t.Errorf("expected 1 registered session, got %d", srv.Sessions().Len())
	}

	if err := conn.WriteJSON(map[string]string{"message": "hello"}); err != nil {
		t.Fatalf("write message: %v", err)
	}
	frame := readFrame(t, conn)
	if frame.Type != "response" || frame.Response != "socket answer" {
		t.Errorf("response frame = %+v", frame)
	}
	if frame.SessionID != connected.SessionID {
		t.Errorf("response session %q, want %q", frame.SessionID, connected.SessionID)
	}
}

func TestWebSocket_ErrorFrames(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{response: "ok"}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn := dialWS(t, ts)
	readFrame(t, conn)

	// Malformed JSON and empty messages get error frames, and the
	// connection stays usable afterward.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readFrame(t, conn)
	if frame.Type != "error" || !strings.Contains(frame.Error, "invalid JSON") {
		t.Errorf("malformed frame response = %+v", frame)
	}

	if err := conn.WriteJSON(map[string]string{"message": ""}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame = readFrame(t, conn)
	if frame.Type != "error" || !strings.Contains(frame.Error, "message is required") {
		t.Errorf("empty-message response = %+v", frame)
	}

	if err := conn.WriteJSON(map[string]string{"message": "still alive?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame = readFrame(t, conn); frame.Type != "response" {
		t.Errorf("connection unusable after errors: %+v", frame)
	}
}

func TestWebSocket_EvictsSessionOnClose(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{response: "ok"}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn := dialWS(t, ts)
	readFrame(t, conn)
	if srv.Sessions().Len() != 1 {
		t.Fatalf("expected 1 session while connected, got %d", srv.Sessions().Len())
	}

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Sessions().Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session not evicted after close: %d remaining", srv.Sessions().Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
