package model

// Event types carried over the real-time channel
const (
	EventMessageCreated = "message.created"
	EventTypingChanged  = "typing.changed"
	EventReadReceipt    = "read.receipt"
	EventError          = "error"

	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSend        = "chat.send"
	FrameTyping      = "chat.typing"
	FrameRead        = "chat.read"
)

// Event is the envelope for every frame on the real-time channel, in both
// directions. Only the field matching Type is populated.
type Event struct {
	Type     string           `json:"type"`
	ThreadID string           `json:"threadId"`
	Message  *Message         `json:"message,omitempty"`
	Typing   *TypingIndicator `json:"typing,omitempty"`
	Read     *ReadReceipt     `json:"read,omitempty"`
	Error    string           `json:"error,omitempty"`
	// ClientID names the chat.send frame an error answers
	ClientID string `json:"clientId,omitempty"`
}
