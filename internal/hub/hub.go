// Package hub keeps track of WebSocket clients and the threads they are
// subscribed to, and fans real-time events out to them.
package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"eventhub/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one WebSocket connection
type Client struct {
	UserID   string
	UserType model.SenderType

	conn *websocket.Conn
	send chan model.Event
	once sync.Once
}

// NewClient wraps an upgraded connection
func NewClient(conn *websocket.Conn, userID string, userType model.SenderType) *Client {
	return &Client{
		UserID:   userID,
		UserType: userType,
		conn:     conn,
		send:     make(chan model.Event, 64),
	}
}

// Conn returns the underlying connection
func (c *Client) Conn() *websocket.Conn { return c.conn }

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

// WritePump serializes every write to the connection and keeps it alive with
// pings. It returns when the client is removed from the hub.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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

// PrepareRead sets the read deadline handling that pairs with WritePump pings
func (c *Client) PrepareRead() {
	c.conn.SetReadLimit(1 << 16)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

// Hub tracks clients and per-thread subscriptions
type Hub struct {
	broker Broker

	mu      sync.RWMutex
	clients map[*Client]map[string]bool
	threads map[string]map[*Client]bool
}

// New creates a hub that distributes events through broker
func New(broker Broker) *Hub {
	return &Hub{
		broker:  broker,
		clients: make(map[*Client]map[string]bool),
		threads: make(map[string]map[*Client]bool),
	}
}

// Register adds a client
func (h *Hub) Register(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = make(map[string]bool)
	return len(h.clients)
}

// Unregister removes a client and all its subscriptions
func (h *Hub) Unregister(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	for threadID := range h.clients[c] {
		h.removeLocked(c, threadID)
	}
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	return len(h.clients)
}

// Subscribe adds c to the thread's audience. Subscribing twice is a no-op.
func (h *Hub) Subscribe(c *Client, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.clients[c]
	if !ok || subs[threadID] {
		return
	}
	subs[threadID] = true
	if h.threads[threadID] == nil {
		h.threads[threadID] = make(map[*Client]bool)
	}
	h.threads[threadID][c] = true
}

// Unsubscribe removes c from the thread's audience
func (h *Hub) Unsubscribe(c *Client, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, threadID)
}

func (h *Hub) removeLocked(c *Client, threadID string) {
	if subs, ok := h.clients[c]; ok {
		delete(subs, threadID)
	}
	if audience, ok := h.threads[threadID]; ok {
		delete(audience, c)
		if len(audience) == 0 {
			delete(h.threads, threadID)
		}
	}
}

// Subscribers returns the number of clients subscribed to a thread
func (h *Hub) Subscribers(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads[threadID])
}

// Publish hands an event to the broker for delivery on every instance
func (h *Hub) Publish(ctx context.Context, ev model.Event) error {
	return h.broker.Publish(ctx, ev)
}

// Reply sends an event to a single client, bypassing the broker
func (h *Hub) Reply(c *Client, ev model.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- ev:
	default:
	}
}

// Run delivers broker events to subscribed clients until the broker's event
// channel closes or ctx is done.
func (h *Hub) Run(ctx context.Context) {
	events := h.broker.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.deliver(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) deliver(ev model.Event) {
	// sends are non-blocking, so holding the read lock keeps Unregister from
	// closing a send channel mid-delivery
	var dropped []*Client
	h.mu.RLock()
	for c := range h.threads[ev.ThreadID] {
		select {
		case c.send <- ev:
		default:
			dropped = append(dropped, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dropped {
		remaining := h.Unregister(c)
		log.Printf("[WebSocket] Dropped slow client %s. Total clients: %d", c.UserID, remaining)
	}
}
