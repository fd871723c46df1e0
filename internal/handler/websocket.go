package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"eventhub/internal/hub"
	"eventhub/internal/model"
	"eventhub/internal/service"
)

// createUpgrader creates a WebSocket upgrader with the given allowed origins.
// Requests without an Origin header come from non-browser clients and pass.
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedMap[origin]
		},
	}
}

// HandleWebSocket handles GET /ws
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	caller, ok := identify(w, r)
	if !ok {
		return
	}

	upgrader := createUpgrader(h.Config.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := hub.NewClient(conn, caller.UserID, caller.Type)
	totalClients := h.Hub.Register(client)
	log.Printf("New WebSocket connection from %s (%s). Total clients: %d", caller.UserID, caller.Type, totalClients)

	go client.WritePump()
	client.PrepareRead()

	for {
		var frame model.Event
		if err := conn.ReadJSON(&frame); err != nil {
			remainingClients := h.Hub.Unregister(client)
			log.Printf("[WebSocket] Client disconnected. Total clients: %d", remainingClients)
			return
		}
		h.dispatch(client, caller, frame)
	}
}

// dispatch handles one client frame. Failures are reported back to the
// sending client only.
func (h *Handler) dispatch(client *hub.Client, caller service.Caller, frame model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	var clientID string
	switch frame.Type {
	case model.FrameSubscribe:
		if err = h.Service.CanAccess(ctx, caller, frame.ThreadID); err == nil {
			h.Hub.Subscribe(client, frame.ThreadID)
			log.Printf("[WebSocket] %s subscribed to thread %s", caller.UserID, frame.ThreadID)
		}
	case model.FrameUnsubscribe:
		h.Hub.Unsubscribe(client, frame.ThreadID)
	case model.FrameSend:
		if frame.Message == nil {
			h.Hub.Reply(client, model.Event{Type: model.EventError, ThreadID: frame.ThreadID, Error: "message is required"})
			return
		}
		clientID = frame.Message.ClientID
		_, err = h.Service.SendMessage(ctx, caller, frame.ThreadID, frame.Message.Content, clientID)
	case model.FrameTyping:
		isTyping := frame.Typing != nil && frame.Typing.IsTyping
		err = h.Service.Typing(ctx, caller, frame.ThreadID, isTyping)
	case model.FrameRead:
		_, err = h.Service.MarkRead(ctx, caller, frame.ThreadID)
	default:
		h.Hub.Reply(client, model.Event{Type: model.EventError, ThreadID: frame.ThreadID, Error: "unknown frame type: " + frame.Type})
		return
	}

	if err != nil {
		status, msg := statusFor(err)
		log.Printf("[WebSocket] ❌ %s on thread %s failed (%d): %v", frame.Type, frame.ThreadID, status, err)
		h.Hub.Reply(client, model.Event{Type: model.EventError, ThreadID: frame.ThreadID, Error: msg, ClientID: clientID})
	}
}
