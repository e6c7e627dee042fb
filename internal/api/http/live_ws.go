package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"moviefinder/internal/domain"
	"moviefinder/internal/metrics"
	"moviefinder/internal/usecase"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = 30 * time.Second
	wsReadLimit   = 2048
	wsSendBacklog = 16
)

type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// wsClientMessage is what the client sends: {"type":"query","text":"..."}.
type wsClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type liveResultsPayload struct {
	Seq   uint64         `json:"seq"`
	Query string         `json:"query"`
	Items []domain.Movie `json:"items"`
}

type liveErrorPayload struct {
	Seq     uint64 `json:"seq,omitempty"`
	Query   string `json:"query,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type liveResetPayload struct {
	Seq uint64 `json:"seq"`
}

func newLiveUpgrader(policy originPolicy) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.checkOrigin,
	}
}

// liveClient is one typing session: readPump feeds keystrokes into the
// debounced search, writePump drains its results.
type liveClient struct {
	conn   *websocket.Conn
	logger *slog.Logger
	live   *usecase.LiveSearch

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func (s *Server) handleLiveSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", "catalog is not configured")
		return
	}
	conn, err := newLiveUpgrader(newOriginPolicy(s.corsOrigins)).Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &liveClient{
		conn:   conn,
		logger: s.logger,
		send:   make(chan []byte, wsSendBacklog),
	}
	client.live = usecase.NewLiveSearch(context.WithoutCancel(r.Context()), s.search, client.deliver, usecase.LiveSearchConfig{
		Quiet:  s.debounceQuiet,
		Logger: s.logger,
		Clock:  s.debounceClock,
	})

	metrics.LiveSearchSessions.Inc()
	s.logger.Debug("live search session opened", slog.String("clientIP", clientIP(r)))

	go client.writePump()
	client.readPump()

	client.live.Close()
	client.closeSend()
	metrics.LiveSearchSessions.Dec()
	s.logger.Debug("live search session closed", slog.String("clientIP", clientIP(r)))
}

func (c *liveClient) deliver(result usecase.LiveResult) {
	switch {
	case result.Reset:
		c.enqueue(wsMessage{Type: "reset", Data: liveResetPayload{Seq: result.Seq}})
	case result.Err != nil:
		status, code := classifyError(result.Err)
		c.enqueue(wsMessage{Type: "error", Data: liveErrorPayload{
			Seq:     result.Seq,
			Query:   result.Query,
			Code:    code,
			Message: publicMessage(status, code, result.Err),
		}})
	default:
		c.enqueue(wsMessage{Type: "results", Data: liveResultsPayload{
			Seq:   result.Seq,
			Query: result.Query,
			Items: result.Movies,
		}})
	}
}

// enqueue never blocks; a client that stops reading loses messages.
func (c *liveClient) enqueue(msg wsMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("ws marshal failed", slog.String("error", err.Error()))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Debug("ws send buffer full, message dropped", slog.String("type", msg.Type))
	}
}

func (c *liveClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *liveClient) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(wsMessage{Type: "error", Data: liveErrorPayload{Code: "invalid_request", Message: "invalid json message"}})
			continue
		}
		switch msg.Type {
		case "query":
			if len(msg.Text) > maxQueryLength {
				c.enqueue(wsMessage{Type: "error", Data: liveErrorPayload{Code: "invalid_request", Message: "query too long (max 500 characters)"}})
				continue
			}
			c.live.Update(msg.Text)
		default:
			c.enqueue(wsMessage{Type: "error", Data: liveErrorPayload{Code: "invalid_request", Message: "unknown message type"}})
		}
	}
}
