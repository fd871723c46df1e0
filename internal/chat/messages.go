package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"eventhub/internal/model"
)

const (
	// DefaultPageSize is how much history a thread opens with
	DefaultPageSize = 50
	// DuplicateWindow bounds the content match used when a server message
	// carries neither a known id nor a correlation id.
	DuplicateWindow = 5 * time.Second
)

// HistoryAPI fetches thread history
type HistoryAPI interface {
	GetMessages(ctx context.Context, threadID string, page, size int) (*model.MessagePage, error)
}

// MergeResult says what MergeIncoming did with a message
type MergeResult int

const (
	// Added appended a new message
	Added MergeResult = iota
	// Replaced swapped a pending local entry for its server copy
	Replaced
	// Duplicate dropped a message that was already present
	Duplicate
	// Ignored dropped a message for another thread
	Ignored
)

// MessageStore is the ordered message list of the active thread
type MessageStore struct {
	api      HistoryAPI
	pageSize int

	mu       sync.Mutex
	threadID string
	messages []model.Message
}

// NewMessageStore creates an empty store. pageSize <= 0 uses DefaultPageSize.
func NewMessageStore(api HistoryAPI, pageSize int) *MessageStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MessageStore{api: api, pageSize: pageSize}
}

// Reset empties the store and binds it to threadID
func (s *MessageStore) Reset(threadID string) {
	s.mu.Lock()
	s.threadID = threadID
	s.messages = nil
	s.mu.Unlock()
}

// ThreadID returns the thread the store is bound to
func (s *MessageStore) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// LoadHistory fetches the most recent page of threadID, oldest first. The
// store is only updated when it is still bound to threadID; messages that
// arrived while the page was loading are kept.
func (s *MessageStore) LoadHistory(ctx context.Context, threadID string) ([]model.Message, error) {
	page, err := s.api.GetMessages(ctx, threadID, 0, s.pageSize)
	if err != nil {
		return nil, err
	}

	history := make([]model.Message, len(page.Content))
	for i, m := range page.Content {
		history[len(history)-1-i] = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.threadID != threadID {
		return history, nil
	}

	live := s.messages
	s.messages = append([]model.Message(nil), history...)
	for _, m := range live {
		s.merge(m)
	}
	return s.snapshot(), nil
}

// AppendOptimistic adds a local entry that has not been confirmed yet
func (s *MessageStore) AppendOptimistic(m model.Message) {
	m.Pending = true
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ThreadID != s.threadID {
		return
	}
	s.insert(m)
}

// RemoveOptimistic drops a pending entry, e.g. after a failed send. It
// reports whether the entry was found.
func (s *MessageStore) RemoveOptimistic(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == id && m.Pending {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

// RemovePending drops the pending entry carrying clientID and returns it
func (s *MessageStore) RemovePending(clientID string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if clientID != "" && m.ClientID == clientID && m.Pending {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return m, true
		}
	}
	return model.Message{}, false
}

// MergeIncoming folds a server message into the list. A message is a
// duplicate when its id is known or its correlation id matches a local
// entry. Messages without a correlation id fall back to a content match: same
// sender side and content within DuplicateWindow. Duplicates of pending
// entries replace them in place.
func (s *MessageStore) MergeIncoming(m model.Message) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ThreadID != "" && m.ThreadID != s.threadID {
		return Ignored
	}
	return s.merge(m)
}

func (s *MessageStore) merge(m model.Message) MergeResult {
	i := s.match(m)
	if m.Pending && i >= 0 {
		return Duplicate
	}
	if i < 0 {
		s.insert(m)
		return Added
	}
	if !s.messages[i].Pending {
		if m.IsRead {
			s.messages[i].IsRead = true
		}
		return Duplicate
	}
	m.Pending = false
	s.messages[i] = m
	s.order()
	return Replaced
}

func (s *MessageStore) match(m model.Message) int {
	for i, cur := range s.messages {
		if m.ID != "" && cur.ID == m.ID {
			return i
		}
	}
	if m.ClientID != "" {
		for i, cur := range s.messages {
			if cur.ClientID == m.ClientID {
				return i
			}
		}
		return -1
	}
	for i, cur := range s.messages {
		if cur.Content != m.Content || cur.SenderType != m.SenderType {
			continue
		}
		d := cur.CreatedAt.Sub(m.CreatedAt)
		if d < 0 {
			d = -d
		}
		if d <= DuplicateWindow {
			return i
		}
	}
	return -1
}

func (s *MessageStore) insert(m model.Message) {
	s.messages = append(s.messages, m)
	s.order()
}

func (s *MessageStore) order() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
}

// MarkRead flags every message not sent by reader as read. It returns the
// number of messages that changed.
func (s *MessageStore) MarkRead(reader model.SenderType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.messages {
		if s.messages[i].SenderType != reader && !s.messages[i].IsRead {
			s.messages[i].IsRead = true
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the list, oldest first
func (s *MessageStore) Snapshot() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *MessageStore) snapshot() []model.Message {
	return append([]model.Message(nil), s.messages...)
}
