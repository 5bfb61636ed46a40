package server

import (
	"sync"
	"time"

	"github.com/dotside-studios/nfc-presence-agent/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// client is one connected WebSocket consumer. Writes are serialized since
// gorilla connections allow a single concurrent writer.
type client struct {
	id     string
	remote string
	conn   *websocket.Conn

	mu sync.Mutex
}

func (c *client) send(msg protocol.WebSocketMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *client) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.conn.Close()
}

// Hub tracks connected WebSocket clients and broadcasts messages to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

func (h *Hub) register(conn *websocket.Conn, remote string) *client {
	c := &client{id: uuid.New().String(), remote: remote, conn: conn}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	log.WithFields(log.Fields{"client": c.id, "remote": remote}).Info("WebSocket client connected")
	return c
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	if ok {
		c.conn.Close()
		log.WithField("client", id).Info("WebSocket client disconnected")
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every client and drops the ones that fail.
// It returns the number of clients that received it.
func (h *Hub) Broadcast(msg protocol.WebSocketMessage) int {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.send(msg); err != nil {
			log.WithField("client", c.id).Warnf("WebSocket write error: %v", err)
			h.unregister(c.id)
			continue
		}
		sent++
	}
	return sent
}

// CloseAll disconnects every client with a going-away close frame.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
}
