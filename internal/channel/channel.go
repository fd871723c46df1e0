// Package channel is the client side of the real-time connection. It keeps a
// WebSocket open to the backend, re-subscribes after reconnects, and reports
// through plain boolean results whether a frame went out so callers can fall
// back to HTTP.
package channel

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"eventhub/internal/model"
)

const (
	DefaultReconnectDelay = 10 * time.Second
	DefaultHeartbeat      = 10 * time.Second
	DefaultMaxFailures    = 3

	writeWait = 10 * time.Second
)

// ErrDisabled is returned by Connect once the channel has given up
var ErrDisabled = errors.New("real-time channel disabled")

// Config holds connection parameters
type Config struct {
	URL      string
	UserID   string
	UserType model.SenderType

	ReconnectDelay time.Duration
	Heartbeat      time.Duration
	// MaxFailures consecutive failed connection attempts disable the channel
	MaxFailures int

	Dialer *websocket.Dialer
}

// Handlers receive inbound events. They run on the channel's read goroutine.
type Handlers struct {
	OnMessage    func(model.Message)
	OnTyping     func(model.TypingIndicator)
	OnRead       func(model.ReadReceipt)
	OnError      func(threadID, clientID, msg string)
	OnConnect    func()
	OnDisconnect func()
}

// Channel is a reconnecting WebSocket client
type Channel struct {
	cfg      Config
	handlers Handlers
	dialer   *websocket.Dialer

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	disabled  bool
	started   bool
	failures  int
	subs      map[string]bool

	writeMu sync.Mutex
}

// New creates a channel. Nothing is dialed until Connect.
func New(cfg Config, handlers Handlers) *Channel {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		cfg:      cfg,
		handlers: handlers,
		dialer:   dialer,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[string]bool),
	}
}

// Connect dials the backend and keeps the connection alive in the
// background. The returned error only describes the first attempt; later
// attempts continue until the channel is closed or disabled.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.disabled {
		c.mu.Unlock()
		return ErrDisabled
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		if c.fail(err) {
			return err
		}
		go c.loop(nil)
		return err
	}
	go c.loop(conn)
	return nil
}

// IsConnected reports whether frames can currently be sent
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.disabled
}

// Disabled reports whether the channel gave up reconnecting
func (c *Channel) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// SubscribeToThread starts receiving events for a thread. The subscription
// is remembered and replayed after every reconnect. Subscribing twice is a
// no-op.
func (c *Channel) SubscribeToThread(threadID string) {
	c.mu.Lock()
	if threadID == "" || c.subs[threadID] {
		c.mu.Unlock()
		return
	}
	c.subs[threadID] = true
	c.mu.Unlock()

	c.write(model.Event{Type: model.FrameSubscribe, ThreadID: threadID})
}

// UnsubscribeFromThread stops receiving events for a thread
func (c *Channel) UnsubscribeFromThread(threadID string) {
	c.mu.Lock()
	if !c.subs[threadID] {
		c.mu.Unlock()
		return
	}
	delete(c.subs, threadID)
	c.mu.Unlock()

	c.write(model.Event{Type: model.FrameUnsubscribe, ThreadID: threadID})
}

// Subscribed reports whether the thread is subscribed
func (c *Channel) Subscribed(threadID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[threadID]
}

// SendMessage sends a chat message. false means it was not sent and the
// caller should use the HTTP fallback.
func (c *Channel) SendMessage(threadID, content, clientID string) bool {
	return c.write(model.Event{
		Type:     model.FrameSend,
		ThreadID: threadID,
		Message:  &model.Message{ThreadID: threadID, Content: content, ClientID: clientID},
	})
}

// SendTypingIndicator tells the peer whether the user is typing
func (c *Channel) SendTypingIndicator(threadID string, isTyping bool) bool {
	return c.write(model.Event{
		Type:     model.FrameTyping,
		ThreadID: threadID,
		Typing: &model.TypingIndicator{
			ThreadID: threadID,
			UserID:   c.cfg.UserID,
			UserType: c.cfg.UserType,
			IsTyping: isTyping,
		},
	})
}

// SendReadReceipt marks the peer's messages in the thread as read
func (c *Channel) SendReadReceipt(threadID string) bool {
	return c.write(model.Event{
		Type:     model.FrameRead,
		ThreadID: threadID,
		Read: &model.ReadReceipt{
			ThreadID: threadID,
			UserID:   c.cfg.UserID,
			IsVendor: c.cfg.UserType == model.SenderVendor,
		},
	})
}

// Close disconnects and stops reconnecting
func (c *Channel) Close() error {
	c.once.Do(c.cancel)

	c.mu.Lock()
	conn := c.conn
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("X-User-ID", c.cfg.UserID)
	header.Set("X-User-Type", string(c.cfg.UserType))

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	return conn, err
}

// fail records a failed attempt and reports whether the channel is now
// disabled
func (c *Channel) fail(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	log.Printf("[Channel] ⚠️ Connection attempt %d failed: %v", c.failures, err)
	if c.failures >= c.cfg.MaxFailures {
		c.disabled = true
		log.Printf("[Channel] ❌ Giving up after %d attempts, messages will go over HTTP", c.failures)
	}
	return c.disabled
}

func (c *Channel) loop(conn *websocket.Conn) {
	for {
		if conn != nil {
			c.serve(conn)
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}

		var err error
		conn, err = c.dial(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil || c.fail(err) {
				return
			}
			conn = nil
		}
	}
}

// serve runs one connection until it drops
func (c *Channel) serve(conn *websocket.Conn) {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.connected = true
	c.failures = 0
	threads := make([]string, 0, len(c.subs))
	for id := range c.subs {
		threads = append(threads, id)
	}
	c.mu.Unlock()

	log.Printf("[Channel] ✅ Connected to %s", c.cfg.URL)

	for _, id := range threads {
		c.write(model.Event{Type: model.FrameSubscribe, ThreadID: id})
	}
	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect()
	}

	stop := make(chan struct{})
	go c.heartbeat(conn, stop)
	c.readLoop(conn)
	close(stop)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
	conn.Close()

	log.Printf("[Channel] Disconnected from %s", c.cfg.URL)
	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect()
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(3 * c.cfg.Heartbeat))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(3 * c.cfg.Heartbeat))
		return nil
	})

	for {
		var ev model.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(3 * c.cfg.Heartbeat))
		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev model.Event) {
	switch ev.Type {
	case model.EventMessageCreated:
		if ev.Message != nil && c.handlers.OnMessage != nil {
			c.handlers.OnMessage(*ev.Message)
		}
	case model.EventTypingChanged:
		if ev.Typing != nil && c.handlers.OnTyping != nil {
			c.handlers.OnTyping(*ev.Typing)
		}
	case model.EventReadReceipt:
		if ev.Read != nil && c.handlers.OnRead != nil {
			c.handlers.OnRead(*ev.Read)
		}
	case model.EventError:
		log.Printf("[Channel] ❌ Server error on thread %s: %s", ev.ThreadID, ev.Error)
		if c.handlers.OnError != nil {
			c.handlers.OnError(ev.ThreadID, ev.ClientID, ev.Error)
		}
	}
}

// heartbeat pings so idle connections survive proxies and dead ones are
// noticed through the read deadline
func (c *Channel) heartbeat(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				return
			}
		case <-stop:
			return
		}
	}
}

func (c *Channel) write(ev model.Event) bool {
	c.mu.Lock()
	conn := c.conn
	ok := c.connected && !c.disabled && conn != nil
	c.mu.Unlock()
	if !ok {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		log.Printf("[Channel] ❌ Failed to send %s: %v", ev.Type, err)
		conn.Close()
		return false
	}
	return true
}
