package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"dock-chat-service/internal/auth"
	"dock-chat-service/internal/chat"
	"dock-chat-service/internal/models"
	"dock-chat-service/internal/observability"
)

// Coordinator is the slice of the chat service the socket handler drives for
// inbound client events.
type Coordinator interface {
	PostMessage(ctx context.Context, caller chat.Caller, conversationID int, content string) (models.Message, error)
	MarkRead(ctx context.Context, caller chat.Caller, conversationID int) (int, error)
}

// clientEvent is an inbound event on the live transport. Identity fields a
// client may assert (sender id, team id) are ignored in favour of the
// session; the live path only triggers server-side operations.
type clientEvent struct {
	Type           string `json:"type"`
	UserID         int    `json:"user_id,omitempty"`
	TeamID         int    `json:"team_id,omitempty"`
	ConversationID int    `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	SenderID       int    `json:"sender_id,omitempty"`
}

// Inbound event types.
const (
	eventJoin        = "join"
	eventSendMessage = "send-message"
	eventMarkRead    = "mark-read"
)

// SocketHandler upgrades websocket connections and runs their read loop.
type SocketHandler struct {
	hub     *Hub
	service Coordinator
	auth    *auth.Manager
	logger  zerolog.Logger
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, service Coordinator, authManager *auth.Manager, logger zerolog.Logger) *SocketHandler {
	return &SocketHandler{hub: hub, service: service, auth: authManager, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// safeConn serializes writes to the underlying connection; gorilla/websocket
// permits at most one concurrent writer, and overlapping publishes can reach
// the same connection through different rooms.
type safeConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (c *safeConn) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// Handle authenticates the session, upgrades the connection, and registers
// it with the hub. Room binding happens on the explicit join event.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("dock-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := auth.TokenFromRequest(c.Request)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
		return
	}
	session, err := h.auth.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn := &safeConn{Conn: raw}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      session.UserID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.Register(conn, info)

	observability.IncWSActive()
	h.publishLifecycleEvent(ctx, "ws_connect", info, "")

	go h.readLoop(conn, session, info)
}

func (h *SocketHandler) readLoop(conn *safeConn, session auth.Session, info ConnInfo) {
	caller := chat.Caller{UserID: session.UserID, TeamID: session.TeamID}
	var closeReason string

	defer func() {
		// the hub holds the authoritative info once the connection joined
		if current, ok := h.hub.Info(conn); ok {
			info = current
		}
		h.hub.Remove(conn)
		conn.Close()
		observability.DecWSActive()
		h.publishLifecycleEvent(context.Background(), "ws_disconnect", info, closeReason)
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.publishLifecycleEvent(context.Background(), "ws_error", info, closeReason)
			}
			return
		}

		var event clientEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			h.logger.Debug().Err(err).Str("conn_id", info.ConnID).Msg("malformed client event")
			continue
		}

		// The live transport is advisory: operation failures are logged,
		// never reported back over the socket. Clients recover through the
		// authoritative HTTP surface.
		switch event.Type {
		case eventJoin:
			h.hub.Join(conn, session.UserID, session.TeamID)
		case eventSendMessage:
			if _, err := h.service.PostMessage(context.Background(), caller, event.ConversationID, event.Content); err != nil {
				h.logger.Warn().Err(err).Int("user_id", session.UserID).Int("conversation_id", event.ConversationID).Msg("socket send-message rejected")
			}
		case eventMarkRead:
			if _, err := h.service.MarkRead(context.Background(), caller, event.ConversationID); err != nil {
				h.logger.Warn().Err(err).Int("user_id", session.UserID).Int("conversation_id", event.ConversationID).Msg("socket mark-read rejected")
			}
		default:
			h.logger.Debug().Str("type", event.Type).Str("conn_id", info.ConnID).Msg("unknown client event")
		}
	}
}

func (h *SocketHandler) publishLifecycleEvent(ctx context.Context, name string, info ConnInfo, reason string) {
	observability.IncWSEvent(name)
	_ = observability.PublishEvent(ctx, observability.WSRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: observability.WSEventPayload{
			Event:      name,
			ConnID:     info.ConnID,
			UserID:     info.UserID,
			IP:         info.IP,
			DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
			Reason:     reason,
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
