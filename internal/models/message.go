package models

import "time"

// Message is immutable once created; it belongs to exactly one conversation.
type Message struct {
	ID             int       `db:"id" json:"id"`
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	SenderID       int       `db:"sender_id" json:"sender_id"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MessageRead is a read receipt, unique per (message, user). Senders never
// hold receipts for their own messages.
type MessageRead struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// MessagePage is one page of a backward-paginated message listing: messages
// oldest-to-newest within the page, NextCursor pointing at the page of older
// messages (0 when exhausted).
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor int       `json:"next_cursor,omitempty"`
}
