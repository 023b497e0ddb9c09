package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rudrakanya/Simhasth-X8/notify"
	"github.com/rudrakanya/Simhasth-X8/service"
)

const writeTimeout = 10 * time.Second

// Hub tracks websocket clients. It carries control commands inbound and
// broadcasts notifications outbound, so it doubles as a notify.Publisher.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]bool
}

// client serializes writes to one connection: command replies and broadcast
// frames race otherwise.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

var _ notify.Publisher = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger.With("component", "hub"),
		clients: make(map[*client]bool),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// controlResponse answers one control command over the websocket.
type controlResponse struct {
	OK     bool                  `json:"ok"`
	Error  string                `json:"error,omitempty"`
	Report *service.StatusReport `json:"report,omitempty"`
}

// notificationFrame wraps a broadcast payload with its subject.
type notificationFrame struct {
	Subject string          `json:"subject"`
	Payload json.RawMessage `json:"payload"`
}

// ServeWS upgrades the request and processes control commands until the
// client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, handle func(context.Context, service.Command) (*service.StatusReport, error)) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.logger.Debug("client connected", "remote", conn.RemoteAddr())

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		_ = conn.Close()
		h.logger.Debug("client disconnected", "remote", conn.RemoteAddr())
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd service.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			_ = c.writeJSON(controlResponse{OK: false, Error: "malformed command"})
			continue
		}

		report, err := handle(r.Context(), cmd)
		if err != nil {
			_ = c.writeJSON(controlResponse{OK: false, Error: err.Error()})
			continue
		}
		_ = c.writeJSON(controlResponse{OK: true, Report: report})
	}
}

// Publish broadcasts a notification frame to every connected client.
// Satisfies notify.Publisher; clients that fail to take the write are
// dropped.
func (h *Hub) Publish(subject string, data []byte) error {
	frame := notificationFrame{Subject: subject, Payload: data}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.writeJSON(frame); err != nil {
			h.logger.Warn("broadcast failed, dropping client", "error", err)
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			_ = c.conn.Close()
		}
	}
	return nil
}

// CloseAll disconnects every client, e.g. during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}
