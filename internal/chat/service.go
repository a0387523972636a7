package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"dock-chat-service/internal/apperrors"
	"dock-chat-service/internal/models"
	"dock-chat-service/internal/repositories"
)

// Caller is the authenticated identity acting on the service, as resolved by
// the session authenticator. TeamID is zero for users without a team.
type Caller struct {
	UserID int
	TeamID int
}

// Broadcaster fans events out to live connections. Implementations are
// best-effort; the service never depends on delivery succeeding.
type Broadcaster interface {
	NewMessage(conv models.Conversation, participants []int, msg models.Message)
	MessageRead(conv models.Conversation, participants []int, userID int)
}

// DefaultPageSize is the message page size when the client does not ask for
// one.
const DefaultPageSize = 50

// MaxPageSize caps a single message page.
const MaxPageSize = 200

// Service coordinates durable message state with live fan-out. Messages are
// persisted before any broadcast; unread counts are derived from receipts on
// every read rather than cached.
type Service struct {
	convRepo    repositories.ConversationRepository
	msgRepo     repositories.MessageRepository
	broadcaster Broadcaster
	logger      zerolog.Logger
}

// NewService builds a Service.
func NewService(convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, broadcaster Broadcaster, logger zerolog.Logger) *Service {
	return &Service{
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// PostMessage validates and persists a message, bumps the conversation's
// last-activity timestamp, and fans the message out to the conversation's
// rooms. The returned message is durable even when fan-out delivery fails.
func (s *Service) PostMessage(ctx context.Context, caller Caller, conversationID int, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, apperrors.InvalidArg("message content is empty")
	}

	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if err := s.authorize(ctx, conv, caller); err != nil {
		return models.Message{}, err
	}

	msg, err := s.msgRepo.Create(ctx, conv.ID, caller.UserID, content)
	if err != nil {
		return models.Message{}, apperrors.Storage("create message", err)
	}

	if err := s.convRepo.Touch(ctx, conv.ID); err != nil {
		// the message is already durable; a stale activity timestamp is not
		// worth failing the request over
		s.logger.Warn().Err(err).Int("conversation_id", conv.ID).Msg("bump conversation activity failed")
	}

	s.fanout(ctx, conv, func(participants []int) {
		s.broadcaster.NewMessage(conv, participants, msg)
	})
	return msg, nil
}

// MarkRead creates the missing read receipts for the caller in one batch and
// returns how many were newly created. Idempotent: a second call returns 0.
func (s *Service) MarkRead(ctx context.Context, caller Caller, conversationID int) (int, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if err := s.authorize(ctx, conv, caller); err != nil {
		return 0, err
	}

	count, err := s.msgRepo.MarkConversationRead(ctx, conv.ID, caller.UserID)
	if err != nil {
		return 0, apperrors.Storage("mark conversation read", err)
	}

	if count > 0 {
		s.fanout(ctx, conv, func(participants []int) {
			s.broadcaster.MessageRead(conv, participants, caller.UserID)
		})
	}
	return count, nil
}

// UnreadCount derives the caller's unread count for a conversation.
func (s *Service) UnreadCount(ctx context.Context, conversationID, userID int) (int, error) {
	count, err := s.msgRepo.UnreadCount(ctx, conversationID, userID)
	if err != nil {
		return 0, apperrors.Storage("unread count", err)
	}
	return count, nil
}

// ListConversations returns the caller's conversations (global, team,
// privates) annotated with their most recent message and unread count,
// ordered by last activity descending.
func (s *Service) ListConversations(ctx context.Context, caller Caller) ([]models.ConversationSummary, error) {
	convs, err := s.convRepo.ListForUser(ctx, caller.UserID, caller.TeamID)
	if err != nil {
		return nil, apperrors.Storage("list conversations", err)
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		last, err := s.msgRepo.LastMessage(ctx, conv.ID)
		if err != nil {
			return nil, apperrors.Storage("load last message", err)
		}
		unread, err := s.msgRepo.UnreadCount(ctx, conv.ID, caller.UserID)
		if err != nil {
			return nil, apperrors.Storage("unread count", err)
		}

		summary := models.ConversationSummary{
			ID:          conv.ID,
			Type:        conv.Type,
			Name:        conv.DisplayName(),
			LastMessage: last,
			UnreadCount: unread,
			UpdatedAt:   conv.UpdatedAt,
		}
		if conv.TeamID.Valid {
			summary.TeamID = int(conv.TeamID.Int64)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ListMessages returns one backward page of a conversation's messages,
// oldest-to-newest within the page. The next cursor points at older messages
// and is zero once the history is exhausted.
func (s *Service) ListMessages(ctx context.Context, caller Caller, conversationID, limit, cursor int) (models.MessagePage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return models.MessagePage{}, err
	}
	if err := s.authorize(ctx, conv, caller); err != nil {
		return models.MessagePage{}, err
	}

	msgs, err := s.msgRepo.ListPage(ctx, conv.ID, limit, cursor)
	if err != nil {
		return models.MessagePage{}, apperrors.Storage("list messages", err)
	}

	page := models.MessagePage{Messages: msgs}
	if len(msgs) == limit {
		page.NextCursor = msgs[0].ID
	}
	return page, nil
}

// ResolvePrivateConversation finds or creates the canonical private
// conversation between the caller and another user. Concurrent calls from
// both sides converge on the same conversation through the store's unique
// constraint.
func (s *Service) ResolvePrivateConversation(ctx context.Context, caller Caller, participantID int) (models.Conversation, bool, error) {
	if participantID <= 0 {
		return models.Conversation{}, false, apperrors.InvalidArg("participant id is required")
	}
	if participantID == caller.UserID {
		return models.Conversation{}, false, apperrors.InvalidArg("cannot start a conversation with yourself")
	}

	conv, created, err := s.convRepo.CreateOrGetPrivate(ctx, caller.UserID, participantID)
	if err != nil {
		return models.Conversation{}, false, apperrors.Storage("resolve private conversation", err)
	}
	return conv, created, nil
}

// EnrollUser adds a new user to the global conversation and, when they have a
// team, to that team's conversation. Missing conversations are skipped, not
// errors; re-enrollment is a no-op.
func (s *Service) EnrollUser(ctx context.Context, userID, teamID int) error {
	global, err := s.convRepo.FindGlobal(ctx)
	switch {
	case err == nil:
		if err := s.convRepo.AddParticipant(ctx, global.ID, userID); err != nil {
			return apperrors.Storage("enroll into global conversation", err)
		}
	case errors.Is(err, repositories.ErrConversationNotFound):
		// global conversation not bootstrapped yet
	default:
		return apperrors.Storage("find global conversation", err)
	}

	if teamID == 0 {
		return nil
	}

	teamConv, err := s.convRepo.FindByTeam(ctx, teamID)
	switch {
	case err == nil:
		if err := s.convRepo.AddParticipant(ctx, teamConv.ID, userID); err != nil {
			return apperrors.Storage("enroll into team conversation", err)
		}
	case errors.Is(err, repositories.ErrConversationNotFound):
		// team has no conversation yet
	default:
		return apperrors.Storage("find team conversation", err)
	}
	return nil
}

// CreateTeamConversation creates the team's conversation, idempotently by
// team id.
func (s *Service) CreateTeamConversation(ctx context.Context, teamID int, teamName string) (models.Conversation, error) {
	if teamID <= 0 {
		return models.Conversation{}, apperrors.InvalidArg("team id is required")
	}
	name := "Team " + strings.TrimSpace(teamName)
	conv, err := s.convRepo.CreateTeamConversation(ctx, teamID, name)
	if err != nil {
		return models.Conversation{}, apperrors.Storage("create team conversation", err)
	}
	return conv, nil
}

func (s *Service) getConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, conversationID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, apperrors.NotFound("conversation not found")
	}
	if err != nil {
		return models.Conversation{}, apperrors.Storage("load conversation", err)
	}
	return conv, nil
}

// authorize enforces room-membership rules: global is open to every
// authenticated caller, team conversations to that team's members, private
// conversations to their two participants.
func (s *Service) authorize(ctx context.Context, conv models.Conversation, caller Caller) error {
	switch conv.Type {
	case models.ConversationGlobal:
		return nil
	case models.ConversationTeam:
		if conv.TeamID.Valid && int(conv.TeamID.Int64) == caller.TeamID {
			return nil
		}
		return apperrors.Forbidden("not a member of this team")
	case models.ConversationPrivate:
		member, err := s.convRepo.IsParticipant(ctx, conv.ID, caller.UserID)
		if err != nil {
			return apperrors.Storage("verify membership", err)
		}
		if !member {
			return apperrors.Forbidden("not a participant of this conversation")
		}
		return nil
	default:
		return apperrors.NotFound("conversation not found")
	}
}

// fanout resolves the participant set when the conversation needs one and
// invokes the broadcast. Failure to resolve participants downgrades to a
// skipped broadcast; durability and delivery are separate failure domains.
func (s *Service) fanout(ctx context.Context, conv models.Conversation, broadcast func(participants []int)) {
	var participants []int
	if conv.Type == models.ConversationPrivate {
		ids, err := s.convRepo.ParticipantIDs(ctx, conv.ID)
		if err != nil {
			s.logger.Warn().Err(err).Int("conversation_id", conv.ID).Msg("resolve participants failed, skipping fan-out")
			return
		}
		participants = ids
	}
	broadcast(participants)
}
