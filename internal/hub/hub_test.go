package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"eventhub/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// setupHub starts a hub and a server that registers every connection and
// subscribes it to the thread named in the query string
func setupHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := New(NewLocalBroker())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(conn, r.URL.Query().Get("user"), model.SenderCustomer)
		h.Register(c)
		h.Subscribe(c, r.URL.Query().Get("thread"))
		go c.WritePump()
		c.PrepareRead()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.Unregister(c)
				return
			}
		}
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return h, server
}

func dial(t *testing.T, server *httptest.Server, user, thread string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=" + user + "&thread=" + thread
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func waitSubscribers(t *testing.T, h *Hub, thread string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers(thread) != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d subscribers on %s, got %d", n, thread, h.Subscribers(thread))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestHub_DeliversToThreadSubscribersOnly events reach the thread's sockets and no others
func TestHub_DeliversToThreadSubscribersOnly(t *testing.T) {
	h, server := setupHub(t)

	a := dial(t, server, "alice", "t1")
	b := dial(t, server, "bob", "t2")
	waitSubscribers(t, h, "t1", 1)
	waitSubscribers(t, h, "t2", 1)

	ev := model.Event{
		Type:     model.EventMessageCreated,
		ThreadID: "t1",
		Message:  &model.Message{ID: "m1", ThreadID: "t1", Content: "Hello"},
	}
	if err := h.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	var got model.Event
	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := a.ReadJSON(&got); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	if got.Message == nil || got.Message.ID != "m1" {
		t.Errorf("Unexpected event %+v", got)
	}

	b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if err := b.ReadJSON(&got); err == nil {
		t.Errorf("Subscriber of another thread received %+v", got)
	}
}

// TestHub_SubscribeIsIdempotent subscribing twice keeps one entry
func TestHub_SubscribeIsIdempotent(t *testing.T) {
	h := New(NewLocalBroker())
	c := &Client{UserID: "u1", send: make(chan model.Event, 1)}
	h.Register(c)

	h.Subscribe(c, "t1")
	h.Subscribe(c, "t1")
	if n := h.Subscribers("t1"); n != 1 {
		t.Errorf("Expected 1 subscriber, got %d", n)
	}

	h.Unsubscribe(c, "t1")
	if n := h.Subscribers("t1"); n != 0 {
		t.Errorf("Expected 0 subscribers after unsubscribe, got %d", n)
	}
}

// TestHub_UnregisterDropsSubscriptions removing a client clears every thread it watched
func TestHub_UnregisterDropsSubscriptions(t *testing.T) {
	h := New(NewLocalBroker())
	c := &Client{UserID: "u1", send: make(chan model.Event, 1)}
	h.Register(c)
	h.Subscribe(c, "t1")
	h.Subscribe(c, "t2")

	if remaining := h.Unregister(c); remaining != 0 {
		t.Errorf("Expected 0 clients, got %d", remaining)
	}
	if h.Subscribers("t1")+h.Subscribers("t2") != 0 {
		t.Error("Subscriptions survived unregister")
	}
	if _, ok := <-c.send; ok {
		t.Error("Send channel should be closed")
	}

	// subscribing an unknown client is ignored
	h.Subscribe(c, "t1")
	if h.Subscribers("t1") != 0 {
		t.Error("Unregistered client was subscribed")
	}
}

// TestHub_SlowClientIsDropped a full send buffer removes the client instead of blocking
func TestHub_SlowClientIsDropped(t *testing.T) {
	h := New(NewLocalBroker())
	c := &Client{UserID: "slow", send: make(chan model.Event)}
	h.Register(c)
	h.Subscribe(c, "t1")

	h.deliver(model.Event{Type: model.EventTypingChanged, ThreadID: "t1"})

	if h.Subscribers("t1") != 0 {
		t.Error("Slow client should have been dropped")
	}
}

// TestHub_DeliverDuringUnregister clients leaving while an event fans out must
// not crash the hub
func TestHub_DeliverDuringUnregister(t *testing.T) {
	h := New(NewLocalBroker())
	clients := make([]*Client, 2000)
	for i := range clients {
		clients[i] = &Client{UserID: fmt.Sprintf("u%d", i), send: make(chan model.Event, 1)}
		h.Register(clients[i])
		h.Subscribe(clients[i], "t1")
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.deliver(model.Event{Type: model.EventTypingChanged, ThreadID: "t1"})
			}
		}()
	}
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			h.Unregister(c)
		}(c)
	}
	wg.Wait()

	if n := h.Subscribers("t1"); n != 0 {
		t.Errorf("Expected every client to be gone, got %d", n)
	}
}

// TestLocalBroker_Closed publishing after close fails
func TestLocalBroker_Closed(t *testing.T) {
	b := NewLocalBroker()
	for i := 0; i < cap(b.events); i++ {
		b.events <- model.Event{}
	}
	b.Close()
	if err := b.Publish(context.Background(), model.Event{}); err == nil {
		t.Error("Expected error publishing to a closed, full broker")
	}
}
