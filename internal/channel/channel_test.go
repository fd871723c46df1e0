package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"eventhub/internal/model"
)

// fakeServer accepts WebSocket connections, records every inbound frame and
// hands each connection to the test
type fakeServer struct {
	*httptest.Server
	frames chan model.Event
	conns  chan *websocket.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		frames: make(chan model.Event, 100),
		conns:  make(chan *websocket.Conn, 10),
	}
	upgrader := websocket.Upgrader{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-ID") == "" {
			http.Error(w, "missing identity", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.conns <- conn
		for {
			var ev model.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			fs.frames <- ev
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.URL, "http")
}

func (fs *fakeServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-fs.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("No connection arrived")
		return nil
	}
}

func (fs *fakeServer) nextFrame(t *testing.T) model.Event {
	t.Helper()
	select {
	case ev := <-fs.frames:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("No frame arrived")
		return model.Event{}
	}
}

func (fs *fakeServer) noFrame(t *testing.T) {
	t.Helper()
	select {
	case ev := <-fs.frames:
		t.Errorf("Unexpected frame %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func testConfig(url string) Config {
	return Config{
		URL:            url,
		UserID:         "cust-1",
		UserType:       model.SenderCustomer,
		ReconnectDelay: 20 * time.Millisecond,
		Heartbeat:      time.Second,
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestSendWhileDisconnected sends report false before a connection exists
func TestSendWhileDisconnected(t *testing.T) {
	ch := New(testConfig("ws://127.0.0.1:1"), Handlers{})
	defer ch.Close()

	if ch.IsConnected() {
		t.Error("New channel should not be connected")
	}
	if ch.SendMessage("t1", "hello", "c1") {
		t.Error("SendMessage should fail while disconnected")
	}
	if ch.SendTypingIndicator("t1", true) || ch.SendReadReceipt("t1") {
		t.Error("Typing and read frames should fail while disconnected")
	}
}

// TestSubscribe_DuplicateIsNoop only one subscribe frame per thread
func TestSubscribe_DuplicateIsNoop(t *testing.T) {
	fs := newFakeServer(t)
	ch := New(testConfig(fs.url()), Handlers{})
	defer ch.Close()

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	fs.nextConn(t)
	waitFor(t, ch.IsConnected, "connection")

	ch.SubscribeToThread("t1")
	ch.SubscribeToThread("t1")

	ev := fs.nextFrame(t)
	if ev.Type != model.FrameSubscribe || ev.ThreadID != "t1" {
		t.Errorf("Unexpected frame %+v", ev)
	}
	fs.noFrame(t)

	ch.UnsubscribeFromThread("t1")
	if ev := fs.nextFrame(t); ev.Type != model.FrameUnsubscribe {
		t.Errorf("Expected unsubscribe, got %+v", ev)
	}
	if ch.Subscribed("t1") {
		t.Error("Thread should no longer be subscribed")
	}
}

// TestSendFrames outbound frames carry the thread and the sender
func TestSendFrames(t *testing.T) {
	fs := newFakeServer(t)
	ch := New(testConfig(fs.url()), Handlers{})
	defer ch.Close()

	ch.Connect(context.Background())
	fs.nextConn(t)
	waitFor(t, ch.IsConnected, "connection")

	if !ch.SendMessage("t1", "Is June free?", "c-1") {
		t.Fatal("SendMessage should succeed while connected")
	}
	ev := fs.nextFrame(t)
	if ev.Type != model.FrameSend || ev.Message == nil || ev.Message.Content != "Is June free?" || ev.Message.ClientID != "c-1" {
		t.Errorf("Unexpected send frame %+v", ev)
	}

	ch.SendTypingIndicator("t1", true)
	ev = fs.nextFrame(t)
	if ev.Type != model.FrameTyping || ev.Typing == nil || !ev.Typing.IsTyping || ev.Typing.UserID != "cust-1" {
		t.Errorf("Unexpected typing frame %+v", ev)
	}

	ch.SendReadReceipt("t1")
	ev = fs.nextFrame(t)
	if ev.Type != model.FrameRead || ev.Read == nil || ev.Read.IsVendor {
		t.Errorf("Unexpected read frame %+v", ev)
	}
}

// TestInboundDispatch server events reach the matching handler
func TestInboundDispatch(t *testing.T) {
	fs := newFakeServer(t)
	messages := make(chan model.Message, 1)
	typing := make(chan model.TypingIndicator, 1)
	reads := make(chan model.ReadReceipt, 1)

	ch := New(testConfig(fs.url()), Handlers{
		OnMessage: func(m model.Message) { messages <- m },
		OnTyping:  func(ti model.TypingIndicator) { typing <- ti },
		OnRead:    func(r model.ReadReceipt) { reads <- r },
	})
	defer ch.Close()

	ch.Connect(context.Background())
	server := fs.nextConn(t)

	server.WriteJSON(model.Event{Type: model.EventMessageCreated, ThreadID: "t1", Message: &model.Message{ID: "m1", Content: "hi"}})
	server.WriteJSON(model.Event{Type: model.EventTypingChanged, ThreadID: "t1", Typing: &model.TypingIndicator{UserID: "vend-1", IsTyping: true}})
	server.WriteJSON(model.Event{Type: model.EventReadReceipt, ThreadID: "t1", Read: &model.ReadReceipt{UserID: "vend-1", IsVendor: true}})

	select {
	case m := <-messages:
		if m.ID != "m1" {
			t.Errorf("Unexpected message %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnMessage not called")
	}
	select {
	case ti := <-typing:
		if !ti.IsTyping {
			t.Errorf("Unexpected typing %+v", ti)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnTyping not called")
	}
	select {
	case r := <-reads:
		if !r.IsVendor {
			t.Errorf("Unexpected receipt %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnRead not called")
	}
}

// TestReconnect_Resubscribes a dropped connection comes back with its subscriptions
func TestReconnect_Resubscribes(t *testing.T) {
	fs := newFakeServer(t)
	var connects, disconnects atomic.Int32

	ch := New(testConfig(fs.url()), Handlers{
		OnConnect:    func() { connects.Add(1) },
		OnDisconnect: func() { disconnects.Add(1) },
	})
	defer ch.Close()

	ch.Connect(context.Background())
	first := fs.nextConn(t)
	waitFor(t, ch.IsConnected, "connection")

	ch.SubscribeToThread("t1")
	fs.nextFrame(t)

	first.Close()
	waitFor(t, func() bool { return disconnects.Load() == 1 }, "disconnect")

	fs.nextConn(t)
	ev := fs.nextFrame(t)
	if ev.Type != model.FrameSubscribe || ev.ThreadID != "t1" {
		t.Errorf("Expected re-subscribe to t1, got %+v", ev)
	}
	waitFor(t, func() bool { return connects.Load() == 2 }, "second OnConnect")
	if !ch.IsConnected() {
		t.Error("Channel should be connected again")
	}
}

// TestDisableAfterFailures repeated connection failures turn the channel off
func TestDisableAfterFailures(t *testing.T) {
	fs := newFakeServer(t)
	url := fs.url()
	fs.Close()

	ch := New(testConfig(url), Handlers{})
	defer ch.Close()

	if err := ch.Connect(context.Background()); err == nil {
		t.Fatal("Expected the first attempt to fail")
	}
	waitFor(t, ch.Disabled, "disable")

	if ch.SendMessage("t1", "hello", "c1") {
		t.Error("Disabled channel must not send")
	}
	if err := ch.Connect(context.Background()); err != ErrDisabled {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
}

// TestClose_StopsReconnecting no new connections after Close
func TestClose_StopsReconnecting(t *testing.T) {
	fs := newFakeServer(t)
	ch := New(testConfig(fs.url()), Handlers{})

	ch.Connect(context.Background())
	fs.nextConn(t)
	waitFor(t, ch.IsConnected, "connection")

	ch.Close()
	waitFor(t, func() bool { return !ch.IsConnected() }, "close")

	select {
	case <-fs.conns:
		t.Error("Channel reconnected after Close")
	case <-time.After(150 * time.Millisecond):
	}
}
