package service

import (
	"context"
	"fmt"
	"strings"

	"eventhub/internal/model"
)

const (
	defaultPageSize  = 50
	maxPageSize      = 100
	maxMessageLength = 5000

	inboxSize     = 50
	previewLength = 50
)

// ListThreads returns the caller's inbox, most recently active first, with
// the last message shortened to a preview
func (n *Negotiation) ListThreads(ctx context.Context, caller Caller) ([]model.ThreadSummary, error) {
	threads, err := n.store.ListThreads(ctx, caller.UserID, caller.Type, inboxSize)
	if err != nil {
		return nil, err
	}
	for i := range threads {
		threads[i].LastMessage = preview(threads[i].LastMessage)
	}
	return threads, nil
}

func preview(content string) string {
	r := []rune(content)
	if len(r) <= previewLength {
		return content
	}
	return string(r[:previewLength-3]) + "..."
}

// GetOrCreateThread returns the customer's conversation with vendorID
func (n *Negotiation) GetOrCreateThread(ctx context.Context, caller Caller, vendorID string) (*model.Thread, error) {
	if caller.Type != model.SenderCustomer {
		return nil, ErrWrongSide
	}
	vendorID = strings.TrimSpace(vendorID)
	if vendorID == "" {
		return nil, fmt.Errorf("%w: vendorId is required", ErrInvalidRequest)
	}
	if vendorID == caller.UserID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", ErrInvalidRequest)
	}
	t, _, err := n.store.GetOrCreateThread(ctx, caller.UserID, vendorID)
	return t, err
}

// ListMessages returns one page of the thread, newest first
func (n *Negotiation) ListMessages(ctx context.Context, caller Caller, threadID string, page, size int) (model.MessagePage, error) {
	if _, err := participant(ctx, n.store, caller, threadID); err != nil {
		return model.MessagePage{}, err
	}
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return n.store.ListMessages(ctx, threadID, page, size)
}

// SendMessage stores a chat message and pushes it to the thread's subscribers.
// clientID is echoed back so the sender can reconcile its optimistic copy.
func (n *Negotiation) SendMessage(ctx context.Context, caller Caller, threadID, content, clientID string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidRequest)
	}
	if len(content) > maxMessageLength {
		return nil, fmt.Errorf("%w: content must be at most %d characters", ErrInvalidRequest, maxMessageLength)
	}
	if _, err := participant(ctx, n.store, caller, threadID); err != nil {
		return nil, err
	}

	m := &model.Message{
		ThreadID:   threadID,
		SenderID:   caller.UserID,
		SenderType: caller.Type,
		Content:    content,
		ClientID:   clientID,
	}
	if err := n.store.CreateMessage(ctx, m); err != nil {
		return nil, err
	}

	n.publish(ctx, model.Event{Type: model.EventMessageCreated, ThreadID: threadID, Message: m})
	return m, nil
}

// MarkRead marks the other side's messages as read and broadcasts a receipt
func (n *Negotiation) MarkRead(ctx context.Context, caller Caller, threadID string) (int64, error) {
	if _, err := participant(ctx, n.store, caller, threadID); err != nil {
		return 0, err
	}
	changed, err := n.store.MarkRead(ctx, threadID, caller.Type)
	if err != nil {
		return 0, err
	}
	n.publish(ctx, model.Event{
		Type:     model.EventReadReceipt,
		ThreadID: threadID,
		Read:     &model.ReadReceipt{ThreadID: threadID, UserID: caller.UserID, IsVendor: caller.IsVendor()},
	})
	return changed, nil
}

// Typing relays a typing indicator. Nothing is stored.
func (n *Negotiation) Typing(ctx context.Context, caller Caller, threadID string, isTyping bool) error {
	if _, err := participant(ctx, n.store, caller, threadID); err != nil {
		return err
	}
	n.publish(ctx, model.Event{
		Type:     model.EventTypingChanged,
		ThreadID: threadID,
		Typing: &model.TypingIndicator{
			ThreadID: threadID,
			UserID:   caller.UserID,
			UserType: caller.Type,
			IsTyping: isTyping,
		},
	})
	return nil
}
