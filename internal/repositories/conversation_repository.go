package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"dock-chat-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

const conversationColumns = `id, type, name, team_id, user_low, user_high, created_at, updated_at`

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	EnsureGlobal(ctx context.Context) (models.Conversation, error)
	FindGlobal(ctx context.Context) (models.Conversation, error)
	FindByTeam(ctx context.Context, teamID int) (models.Conversation, error)
	CreateTeamConversation(ctx context.Context, teamID int, name string) (models.Conversation, error)
	CreateOrGetPrivate(ctx context.Context, userA, userB int) (models.Conversation, bool, error)
	AddParticipant(ctx context.Context, conversationID, userID int) error
	IsParticipant(ctx context.Context, conversationID, userID int) (bool, error)
	ParticipantIDs(ctx context.Context, conversationID int) ([]int, error)
	ListForUser(ctx context.Context, userID, teamID int) ([]models.Conversation, error)
	Touch(ctx context.Context, conversationID int) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE id=$1`, conversationColumns)
	err := r.db.GetContext(ctx, &conv, query, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// EnsureGlobal returns the singleton GLOBAL conversation, creating it when
// absent. The partial unique index keeps concurrent bootstraps from racing
// into duplicates.
func (r *ConversationRepo) EnsureGlobal(ctx context.Context) (models.Conversation, error) {
	conv, err := r.FindGlobal(ctx)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return models.Conversation{}, err
	}

	query := fmt.Sprintf(`INSERT INTO conversations (type, name) VALUES ('GLOBAL', 'Global chat')
        ON CONFLICT (type) WHERE type = 'GLOBAL' DO NOTHING
        RETURNING %s`, conversationColumns)
	err = r.db.GetContext(ctx, &conv, query)
	if errors.Is(err, sql.ErrNoRows) {
		// lost the race, the row exists now
		return r.FindGlobal(ctx)
	}
	return conv, err
}

// FindGlobal fetches the singleton GLOBAL conversation.
func (r *ConversationRepo) FindGlobal(ctx context.Context) (models.Conversation, error) {
	var conv models.Conversation
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE type='GLOBAL'`, conversationColumns)
	err := r.db.GetContext(ctx, &conv, query)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// FindByTeam fetches the TEAM conversation for the given team.
func (r *ConversationRepo) FindByTeam(ctx context.Context, teamID int) (models.Conversation, error) {
	var conv models.Conversation
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE type='TEAM' AND team_id=$1`, conversationColumns)
	err := r.db.GetContext(ctx, &conv, query, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// CreateTeamConversation creates the TEAM conversation for a team, returning
// the existing row when called twice for the same team.
func (r *ConversationRepo) CreateTeamConversation(ctx context.Context, teamID int, name string) (models.Conversation, error) {
	var conv models.Conversation
	query := fmt.Sprintf(`INSERT INTO conversations (type, name, team_id) VALUES ('TEAM', $2, $1)
        ON CONFLICT (team_id) DO UPDATE SET team_id = EXCLUDED.team_id
        RETURNING %s`, conversationColumns)
	err := r.db.GetContext(ctx, &conv, query, teamID, name)
	return conv, err
}

// CreateOrGetPrivate finds or creates the canonical PRIVATE conversation for
// an unordered user pair. The pair is stored ordered so the unique constraint
// collapses concurrent creations onto a single row; the reported created flag
// is best-effort under that race. Participant rows are upserted for both
// users either way.
func (r *ConversationRepo) CreateOrGetPrivate(ctx context.Context, userA, userB int) (models.Conversation, bool, error) {
	low, high := userA, userB
	if low > high {
		low, high = high, low
	}

	var conv models.Conversation
	created := false
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE type='PRIVATE' AND user_low=$1 AND user_high=$2`, conversationColumns)
	err := r.db.GetContext(ctx, &conv, query, low, high)
	if errors.Is(err, sql.ErrNoRows) {
		insert := fmt.Sprintf(`INSERT INTO conversations (type, user_low, user_high) VALUES ('PRIVATE', $1, $2)
            ON CONFLICT (user_low, user_high) DO UPDATE SET user_low = EXCLUDED.user_low
            RETURNING %s`, conversationColumns)
		if err := r.db.GetContext(ctx, &conv, insert, low, high); err != nil {
			return models.Conversation{}, false, err
		}
		created = true
	} else if err != nil {
		return models.Conversation{}, false, err
	}

	if err := r.AddParticipant(ctx, conv.ID, userA); err != nil {
		return models.Conversation{}, false, err
	}
	if err := r.AddParticipant(ctx, conv.ID, userB); err != nil {
		return models.Conversation{}, false, err
	}
	return conv, created, nil
}

// AddParticipant enrolls a user into a conversation; re-enrollment is a no-op.
func (r *ConversationRepo) AddParticipant(ctx context.Context, conversationID, userID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
        ON CONFLICT (conversation_id, user_id) DO NOTHING`, conversationID, userID)
	return err
}

// IsParticipant checks whether the user holds a participant row.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID)
	return exists, err
}

// ParticipantIDs returns the user ids enrolled in a conversation.
func (r *ConversationRepo) ParticipantIDs(ctx context.Context, conversationID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM conversation_participants WHERE conversation_id=$1 ORDER BY user_id`,
		conversationID)
	return ids, err
}

// ListForUser returns the GLOBAL conversation, the user's TEAM conversation,
// and every PRIVATE conversation the user participates in, most recently
// active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID, teamID int) ([]models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversations c
        WHERE c.type='GLOBAL'
           OR (c.type='TEAM' AND c.team_id=$2)
           OR (c.type='PRIVATE' AND EXISTS (
                 SELECT 1 FROM conversation_participants p
                 WHERE p.conversation_id=c.id AND p.user_id=$1))
        ORDER BY c.updated_at DESC`, conversationColumns)
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, query, userID, teamID)
	return convs, err
}

// Touch bumps the conversation's last-activity timestamp.
func (r *ConversationRepo) Touch(ctx context.Context, conversationID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id=$1`, conversationID)
	return err
}
