package ws

import (
	"dock-chat-service/internal/models"
)

// Router resolves a conversation to its broadcast rooms and fans events out
// through the hub. GLOBAL conversations map to the global room, TEAM
// conversations to the team room, and PRIVATE conversations to the per-user
// rooms of exactly their participants.
type Router struct {
	hub *Hub
}

// NewRouter builds a Router over the hub.
func NewRouter(hub *Hub) *Router {
	return &Router{hub: hub}
}

// NewMessage fans a freshly persisted message out to the conversation's
// rooms. Best-effort: delivery failures never surface to the caller.
func (r *Router) NewMessage(conv models.Conversation, participants []int, msg models.Message) {
	r.publish(conv, participants, models.NewMessageEvent(msg))
}

// MessageRead notifies the conversation's rooms that a user advanced their
// read state.
func (r *Router) MessageRead(conv models.Conversation, participants []int, userID int) {
	r.publish(conv, participants, models.MessageReadEvent(conv.ID, userID))
}

func (r *Router) publish(conv models.Conversation, participants []int, event models.Event) {
	switch conv.Type {
	case models.ConversationGlobal:
		r.hub.Publish(RoomGlobal, event)
	case models.ConversationTeam:
		if conv.TeamID.Valid {
			r.hub.Publish(TeamRoom(int(conv.TeamID.Int64)), event)
		}
	case models.ConversationPrivate:
		r.hub.PublishToUsers(participants, event)
	}
}
