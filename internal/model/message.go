package model

import "time"

// SenderType identifies which side of a thread wrote a message
type SenderType string

const (
	SenderCustomer SenderType = "CUSTOMER"
	SenderVendor   SenderType = "VENDOR"
)

// Valid reports whether s is one of the known sender types
func (s SenderType) Valid() bool {
	return s == SenderCustomer || s == SenderVendor
}

// Thread is a conversation between exactly one customer and one vendor
type Thread struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	VendorID   string    `json:"vendorId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ThreadSummary is a thread as it appears in a participant's inbox
type ThreadSummary struct {
	Thread
	LastMessage   string     `json:"lastMessagePreview,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	UnreadCount   int        `json:"unreadCount"`
}

// Message represents a chat message
type Message struct {
	ID         string     `json:"id"`
	ThreadID   string     `json:"threadId"`
	SenderID   string     `json:"senderId"`
	SenderType SenderType `json:"senderType"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	IsRead     bool       `json:"isRead"`

	// ClientID correlates an optimistic local entry with its server echo.
	ClientID string `json:"clientId,omitempty"`
	// Pending is set on local entries that the server has not confirmed yet.
	Pending bool `json:"-"`
}

// MessagePage is one page of thread history, newest first
type MessagePage struct {
	Content []Message `json:"content"`
	Page    int       `json:"page"`
	Size    int       `json:"size"`
	Total   int       `json:"total"`
}

// TypingIndicator is the ephemeral typing state of one participant
type TypingIndicator struct {
	ThreadID string     `json:"threadId"`
	UserID   string     `json:"userId"`
	UserType SenderType `json:"userType"`
	IsTyping bool       `json:"isTyping"`
}

// ReadReceipt tells the peer that a participant has read the thread
type ReadReceipt struct {
	ThreadID string `json:"threadId"`
	UserID   string `json:"userId"`
	IsVendor bool   `json:"isVendor"`
}
