package apihttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialLive(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/search/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

type rawLiveMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readLive(t *testing.T, conn *websocket.Conn) rawLiveMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	var msg rawLiveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return msg
}

func sendQuery(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteJSON(map[string]string{"type": "query", "text": text}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLiveSearchDebouncedResults(t *testing.T) {
	server := newTestServer(newCatalog(), WithDebounce(150*time.Millisecond, nil))
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()
	conn := dialLive(t, srv)

	sendQuery(t, conn, "b")
	sendQuery(t, conn, "bat")
	sendQuery(t, conn, "batman")

	msg := readLive(t, conn)
	if msg.Type != "results" {
		t.Fatalf("type = %s data = %s", msg.Type, msg.Data)
	}
	var payload liveResultsPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Query != "batman" || len(payload.Items) != 2 {
		t.Fatalf("payload = %+v", payload)
	}

	// The debounced search is counted like any other search.
	w := doRequest(t, server.Handler(), http.MethodGet, "/trending", "")
	if !strings.Contains(w.Body.String(), `"searchTerm":"batman"`) {
		t.Fatalf("trending body %s", w.Body.String())
	}
}

func TestLiveSearchReset(t *testing.T) {
	srv := httptest.NewServer(newTestServer(newCatalog(), WithDebounce(150*time.Millisecond, nil)).Handler())
	defer srv.Close()
	conn := dialLive(t, srv)

	sendQuery(t, conn, "dune")
	sendQuery(t, conn, "   ")
	if msg := readLive(t, conn); msg.Type != "reset" {
		t.Fatalf("type = %s", msg.Type)
	}
}

func TestLiveSearchInvalidMessage(t *testing.T) {
	srv := httptest.NewServer(newTestServer(newCatalog()).Handler())
	defer srv.Close()
	conn := dialLive(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readLive(t, conn); msg.Type != "error" {
		t.Fatalf("type = %s", msg.Type)
	}
	if err := conn.WriteJSON(map[string]string{"type": "subscribe"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readLive(t, conn); msg.Type != "error" {
		t.Fatalf("type = %s", msg.Type)
	}
}

func TestLiveSearchWithoutCatalog(t *testing.T) {
	srv := httptest.NewServer(NewServer(WithRateLimit(0, 0)).Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/search/live"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestLiveSearchChecksOrigin(t *testing.T) {
	server := newTestServer(newCatalog(),
		WithDebounce(150*time.Millisecond, nil),
		WithCORSOrigins([]string{"http://app.test"}),
	)
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/search/live"

	tests := []struct {
		name    string
		origin  string
		wantErr bool
	}{
		{"allowed origin", "http://app.test", false},
		{"no origin header", "", false},
		{"foreign origin", "http://evil.test", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.wantErr {
				if err == nil {
					conn.Close()
					t.Fatal("expected dial to fail")
				}
				if resp == nil || resp.StatusCode != http.StatusForbidden {
					t.Fatalf("resp = %+v", resp)
				}
				return
			}
			if err != nil {
				t.Fatalf("dial ws: %v", err)
			}
			resp.Body.Close()
			conn.Close()
		})
	}
}

func TestOriginPolicy(t *testing.T) {
	open := newOriginPolicy(nil)
	if !open.allows("http://anything.test") {
		t.Fatal("empty policy must allow every origin")
	}

	policy := newOriginPolicy([]string{" http://app.test/ ", ""})
	if !policy.allows("http://app.test") {
		t.Fatal("listed origin rejected")
	}
	if policy.allows("http://evil.test") {
		t.Fatal("foreign origin allowed")
	}
	req := httptest.NewRequest(http.MethodGet, "/search/live", nil)
	if !policy.checkOrigin(req) {
		t.Fatal("request without Origin rejected")
	}
	req.Header.Set("Origin", "http://evil.test")
	if policy.checkOrigin(req) {
		t.Fatal("foreign websocket origin accepted")
	}
}
