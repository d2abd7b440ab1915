// Package ws streams audit events to WebSocket clients so dashboards can
// follow live auctions without polling.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bondstreet/bondmatch/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 1024

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256

	// feedBufferSize is the buffer on the audit-event watcher.
	feedBufferSize = 512
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// wsEvent is the wire shape of one audit event.
type wsEvent struct {
	T         int64          `json:"t"`
	Type      string         `json:"type"`
	AuctionID string         `json:"auctionId,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Hub manages connected WebSocket clients and fans the audit-event feed out
// to all of them. The mutex owns the client map; Run only consumes the feed
// and broadcasts, so a client connecting after shutdown is refused instead
// of blocking on a dead loop.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	closed  bool
	feed    domain.EventFeed
	logger  *slog.Logger
}

// NewHub creates a Hub that bridges the audit-event feed to WebSocket
// clients.
func NewHub(feed domain.EventFeed, logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		feed:    feed,
		logger:  logger,
	}
}

// Run starts the hub's broadcast loop. It should be called in a goroutine
// and exits when the context is cancelled, disconnecting every client.
func (h *Hub) Run(ctx context.Context) error {
	events, cancel := h.feed.Watch(feedBufferSize)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				h.shutdown()
				return nil
			}
			data, err := json.Marshal(wsEvent{
				T:         ev.At.UnixMilli(),
				Type:      ev.Type,
				AuctionID: ev.AuctionID,
				Payload:   ev.Payload,
			})
			if err != nil {
				h.logger.Warn("ws: failed to encode event", slog.String("error", err.Error()))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Client's send buffer is full; drop the message.
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	if !h.add(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// add registers a client. It reports false when the hub has already shut
// down; the caller then drops the connection.
func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = true
	h.logger.Info("ws: client connected",
		slog.Int("total_clients", len(h.clients)),
	)
	return true
}

// remove deregisters a client and closes its send channel. Safe to call more
// than once per client.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Info("ws: client disconnected",
			slog.Int("total_clients", len(h.clients)),
		)
	}
}

// shutdown disconnects every client and refuses new ones.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// readPump drains the connection so control frames are processed. Inbound
// text frames carry no meaning on this feed and are discarded.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump forwards broadcast messages to the connection and keeps it alive
// with periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
