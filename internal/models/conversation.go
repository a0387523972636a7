package models

import (
	"database/sql"
	"time"
)

// ConversationType discriminates the three kinds of durable chat channels.
type ConversationType string

const (
	ConversationGlobal  ConversationType = "GLOBAL"
	ConversationTeam    ConversationType = "TEAM"
	ConversationPrivate ConversationType = "PRIVATE"
)

// Conversation is a durable chat channel. Exactly one GLOBAL conversation
// exists, one TEAM conversation per team, and one PRIVATE conversation per
// unordered user pair (stored ordered as user_low < user_high).
type Conversation struct {
	ID        int              `db:"id" json:"id"`
	Type      ConversationType `db:"type" json:"type"`
	Name      sql.NullString   `db:"name" json:"-"`
	TeamID    sql.NullInt64    `db:"team_id" json:"-"`
	UserLow   sql.NullInt64    `db:"user_low" json:"-"`
	UserHigh  sql.NullInt64    `db:"user_high" json:"-"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the stored name or an empty string.
func (c Conversation) DisplayName() string {
	if c.Name.Valid {
		return c.Name.String
	}
	return ""
}

// ConversationSummary is the per-user API view of a conversation: the
// conversation itself annotated with its most recent message and the
// caller's unread count.
type ConversationSummary struct {
	ID          int              `json:"id"`
	Type        ConversationType `json:"type"`
	Name        string           `json:"name,omitempty"`
	TeamID      int              `json:"team_id,omitempty"`
	LastMessage *Message         `json:"last_message,omitempty"`
	UnreadCount int              `json:"unread_count"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Participant links a user to a conversation they may read and write.
type Participant struct {
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	UserID         int       `db:"user_id" json:"user_id"`
	JoinedAt       time.Time `db:"joined_at" json:"joined_at"`
}
