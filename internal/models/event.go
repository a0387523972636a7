package models

// Event is broadcast through websockets. Exactly one of the payload fields is
// set, matching Type.
type Event struct {
	Type    string      `json:"type"`
	Message *Message    `json:"message,omitempty"`
	Read    *ReadNotice `json:"read,omitempty"`
}

// Event types pushed to clients.
const (
	EventNewMessage  = "new-message"
	EventMessageRead = "message-read"
)

// ReadNotice tells room members that a user advanced their read state.
type ReadNotice struct {
	ConversationID int `json:"conversation_id"`
	UserID         int `json:"user_id"`
}

// NewMessageEvent wraps a freshly persisted message for fan-out.
func NewMessageEvent(msg Message) Event {
	return Event{Type: EventNewMessage, Message: &msg}
}

// MessageReadEvent wraps a read-state advance for fan-out.
func MessageReadEvent(conversationID, userID int) Event {
	return Event{Type: EventMessageRead, Read: &ReadNotice{ConversationID: conversationID, UserID: userID}}
}
