package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"dock-chat-service/internal/models"
	"dock-chat-service/internal/observability"
)

// Conn is the write side of a live client connection. *websocket.Conn
// satisfies it; tests use in-memory fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// TextMessage mirrors websocket.TextMessage without importing the transport
// here.
const TextMessage = 1

// Room names. A conversation resolves to one room, except PRIVATE
// conversations which fan out to the per-user rooms of their participants.
const RoomGlobal = "global"

func TeamRoom(teamID int) string {
	return fmt.Sprintf("team:%d", teamID)
}

func UserRoom(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}

type session struct {
	info   ConnInfo
	userID int
	teamID int
	rooms  map[string]bool
}

// Hub tracks live connections and their room memberships. Connections are
// admitted unauthenticated by Register and bound to a user by Join; every
// operation on an unknown connection is a no-op so disconnects can race
// in-flight publishes safely.
type Hub struct {
	mu     sync.RWMutex
	conns  map[Conn]*session
	rooms  map[string]map[Conn]bool
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		conns:  make(map[Conn]*session),
		rooms:  make(map[string]map[Conn]bool),
		logger: logger,
	}
}

// Register admits a new connection in an unauthenticated state.
func (h *Hub) Register(conn Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = &session{info: info, rooms: make(map[string]bool)}
}

// Join binds the connection to a user and assigns its room set: global, the
// user's private room, and the team room when the user has a team. Rejoining
// overwrites the prior binding. Unknown connections are ignored.
func (h *Hub) Join(conn Conn, userID, teamID int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.conns[conn]
	if !ok {
		return
	}

	for room := range sess.rooms {
		h.leaveRoomLocked(room, conn)
	}

	sess.userID = userID
	sess.teamID = teamID
	sess.info.UserID = userID
	sess.rooms = map[string]bool{
		RoomGlobal:       true,
		UserRoom(userID): true,
	}
	if teamID != 0 {
		sess.rooms[TeamRoom(teamID)] = true
	}

	for room := range sess.rooms {
		if _, ok := h.rooms[room]; !ok {
			h.rooms[room] = make(map[Conn]bool)
		}
		h.rooms[room][conn] = true
	}
}

// Remove drops the connection and all of its room memberships. Never errors,
// even for connections that were never registered or joined.
func (h *Hub) Remove(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.conns[conn]
	if !ok {
		return
	}
	for room := range sess.rooms {
		h.leaveRoomLocked(room, conn)
	}
	delete(h.conns, conn)
}

func (h *Hub) leaveRoomLocked(room string, conn Conn) {
	if members, ok := h.rooms[room]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// MembersOf returns a snapshot of the live connections in a room. A publish
// walking the snapshot may miss a connection that joins afterward; it never
// observes a partially mutated set.
func (h *Hub) MembersOf(room string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[room]
	out := make([]Conn, 0, len(members))
	for conn := range members {
		out = append(out, conn)
	}
	return out
}

// Info returns the lifecycle info recorded for a connection.
func (h *Hub) Info(conn Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sess, ok := h.conns[conn]
	if !ok {
		return ConnInfo{}, false
	}
	return sess.info, true
}

// Publish delivers an event to every connection currently in the room,
// best-effort. A failed write closes and removes that connection only; the
// event is not retried and delivery order across members is unspecified.
func (h *Hub) Publish(room string, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("marshal event")
		return
	}
	h.deliver(roomKind(room), room, h.MembersOf(room), payload)
}

// PublishToUsers delivers an event to every connection of each listed user,
// deduplicating connections that would be reached through more than one room.
func (h *Hub) PublishToUsers(userIDs []int, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal event")
		return
	}

	seen := make(map[Conn]bool)
	var targets []Conn
	for _, userID := range userIDs {
		for _, conn := range h.MembersOf(UserRoom(userID)) {
			if !seen[conn] {
				seen[conn] = true
				targets = append(targets, conn)
			}
		}
	}
	h.deliver("user", "", targets, payload)
}

func (h *Hub) deliver(roomKind, room string, targets []Conn, payload []byte) {
	for _, conn := range targets {
		if err := conn.WriteMessage(TextMessage, payload); err != nil {
			h.logger.Warn().Err(err).Str("room", room).Msg("websocket write failed, dropping connection")
			observability.IncFanoutDelivery(roomKind, "error")
			conn.Close()
			h.Remove(conn)
			continue
		}
		observability.IncFanoutDelivery(roomKind, "ok")
	}
}

func roomKind(room string) string {
	switch {
	case room == RoomGlobal:
		return "global"
	case len(room) > 5 && room[:5] == "team:":
		return "team"
	default:
		return "user"
	}
}
