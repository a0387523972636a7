package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"dock-chat-service/internal/models"
)

// MessageRepository defines interactions for messages and read receipts.
type MessageRepository interface {
	Create(ctx context.Context, conversationID, senderID int, content string) (models.Message, error)
	ListPage(ctx context.Context, conversationID, limit, cursor int) ([]models.Message, error)
	LastMessage(ctx context.Context, conversationID int) (*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID int) (int, error)
	UnreadCount(ctx context.Context, conversationID, userID int) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a message in a conversation.
func (r *MessageRepo) Create(ctx context.Context, conversationID, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content) VALUES ($1, $2, $3)
         RETURNING id, conversation_id, sender_id, content, created_at`,
		conversationID, senderID, content).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.CreatedAt)
	return msg, err
}

// ListPage returns one page of messages, oldest-to-newest, walking backward
// from the cursor (a message id, exclusive). Cursor zero means the newest
// page.
func (r *MessageRepo) ListPage(ctx context.Context, conversationID, limit, cursor int) ([]models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, content, created_at FROM messages
        WHERE conversation_id=$1 AND ($2 = 0 OR id < $2)
        ORDER BY id DESC LIMIT $3`
	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, conversationID, cursor, limit); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// LastMessage returns the most recent message, or nil when the conversation
// is empty.
func (r *MessageRepo) LastMessage(ctx context.Context, conversationID int) (*models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, conversation_id, sender_id, content, created_at FROM messages
         WHERE conversation_id=$1 ORDER BY id DESC LIMIT 1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkConversationRead creates the missing read receipts for every message in
// the conversation not authored by the user, in one batch. Re-invocation on a
// fully read conversation affects zero rows.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, userID int) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id)
         SELECT m.id, $2 FROM messages m
         WHERE m.conversation_id=$1 AND m.sender_id<>$2
         ON CONFLICT (message_id, user_id) DO NOTHING`,
		conversationID, userID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// UnreadCount derives the number of messages authored by others that the
// user has not receipted. Never cached.
func (r *MessageRepo) UnreadCount(ctx context.Context, conversationID, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages m
         WHERE m.conversation_id=$1 AND m.sender_id<>$2
           AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id=m.id AND r.user_id=$2)`,
		conversationID, userID)
	return count, err
}
