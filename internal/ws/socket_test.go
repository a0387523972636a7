package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dock-chat-service/internal/auth"
	"dock-chat-service/internal/chat"
	"dock-chat-service/internal/mocks"
	"dock-chat-service/internal/models"
)

type socketFixture struct {
	server   *httptest.Server
	hub      *Hub
	manager  *auth.Manager
	convRepo *mocks.ConversationRepositoryMock
	msgRepo  *mocks.MessageRepositoryMock
}

func newSocketFixture(t *testing.T) *socketFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(zerolog.Nop())
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	service := chat.NewService(convRepo, msgRepo, NewRouter(hub), zerolog.Nop())
	manager := auth.NewManager("test-secret")

	router := gin.New()
	router.GET("/ws", NewSocketHandler(hub, service, manager, zerolog.Nop()).Handle)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &socketFixture{server: server, hub: hub, manager: manager, convRepo: convRepo, msgRepo: msgRepo}
}

func (f *socketFixture) dial(t *testing.T, session auth.Session) *websocket.Conn {
	t.Helper()

	token, err := f.manager.Generate(session)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// joinAndWait sends the join handshake and blocks until the hub has bound the
// connection, so a subsequent publish cannot race the room assignment.
func (f *socketFixture) joinAndWait(t *testing.T, conn *websocket.Conn, room string, want int) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join"}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(f.hub.MembersOf(room)) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connection never joined room %s", room)
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func TestSocketRejectsMissingToken(t *testing.T) {
	f := newSocketFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSocketRejectsInvalidToken(t *testing.T) {
	f := newSocketFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSocketJoinReceivesRoomEvents(t *testing.T) {
	f := newSocketFixture(t)

	conn := f.dial(t, auth.Session{UserID: 5, TeamID: 7})
	f.joinAndWait(t, conn, TeamRoom(7), 1)

	f.hub.Publish(TeamRoom(7), models.NewMessageEvent(models.Message{ID: 3, ConversationID: 2, SenderID: 1, Content: "truck at dock 2"}))

	event := readEvent(t, conn)
	require.Equal(t, models.EventNewMessage, event.Type)
	require.Equal(t, "truck at dock 2", event.Message.Content)
}

func TestSocketSendMessagePersistsAndFansOut(t *testing.T) {
	f := newSocketFixture(t)

	conv := models.Conversation{ID: 1, Type: models.ConversationGlobal}
	created := models.Message{ID: 44, ConversationID: 1, SenderID: 5, Content: "forklift free"}
	f.convRepo.On("Get", mock.Anything, 1).Return(conv, nil).Once()
	// sender identity comes from the session, not the client payload
	f.msgRepo.On("Create", mock.Anything, 1, 5, "forklift free").Return(created, nil).Once()
	f.convRepo.On("Touch", mock.Anything, 1).Return(nil).Once()

	sender := f.dial(t, auth.Session{UserID: 5, TeamID: 7})
	f.joinAndWait(t, sender, UserRoom(5), 1)
	listener := f.dial(t, auth.Session{UserID: 6, TeamID: 9})
	f.joinAndWait(t, listener, RoomGlobal, 2)

	require.NoError(t, sender.WriteJSON(map[string]any{
		"type":            "send-message",
		"conversation_id": 1,
		"content":         "forklift free",
		"sender_id":       99,
	}))

	event := readEvent(t, listener)
	require.Equal(t, models.EventNewMessage, event.Type)
	require.Equal(t, 44, event.Message.ID)
	require.Equal(t, 5, event.Message.SenderID)

	f.msgRepo.AssertExpectations(t)
}

func TestSocketMarkReadNotifiesRoom(t *testing.T) {
	f := newSocketFixture(t)

	conv := models.Conversation{ID: 1, Type: models.ConversationGlobal}
	f.convRepo.On("Get", mock.Anything, 1).Return(conv, nil).Once()
	f.msgRepo.On("MarkConversationRead", mock.Anything, 1, 5).Return(2, nil).Once()

	reader := f.dial(t, auth.Session{UserID: 5, TeamID: 7})
	f.joinAndWait(t, reader, UserRoom(5), 1)
	listener := f.dial(t, auth.Session{UserID: 6, TeamID: 7})
	f.joinAndWait(t, listener, RoomGlobal, 2)

	require.NoError(t, reader.WriteJSON(map[string]any{"type": "mark-read", "conversation_id": 1}))

	event := readEvent(t, listener)
	require.Equal(t, models.EventMessageRead, event.Type)
	require.Equal(t, 1, event.Read.ConversationID)
	require.Equal(t, 5, event.Read.UserID)
}

// One client connection belongs to the global room and its user room at
// once, so overlapping publishes race onto the same gorilla connection. The
// race detector flags unserialized writes here.
func TestSocketSurvivesConcurrentPublishes(t *testing.T) {
	f := newSocketFixture(t)

	conn := f.dial(t, auth.Session{UserID: 5, TeamID: 7})
	f.joinAndWait(t, conn, RoomGlobal, 1)

	const perPublisher = 20
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < perPublisher; i++ {
			f.hub.Publish(RoomGlobal, models.NewMessageEvent(models.Message{ID: i, Content: "global"}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perPublisher; i++ {
			f.hub.Publish(TeamRoom(7), models.NewMessageEvent(models.Message{ID: i, Content: "team"}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perPublisher; i++ {
			f.hub.PublishToUsers([]int{5}, models.MessageReadEvent(1, 5))
		}
	}()
	wg.Wait()

	for i := 0; i < 3*perPublisher; i++ {
		readEvent(t, conn)
	}
}

func TestSocketIgnoresMalformedEvents(t *testing.T) {
	f := newSocketFixture(t)

	conn := f.dial(t, auth.Session{UserID: 5})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f.joinAndWait(t, conn, RoomGlobal, 1)

	f.hub.Publish(RoomGlobal, models.NewMessageEvent(models.Message{ID: 1, Content: "still alive"}))
	event := readEvent(t, conn)
	require.Equal(t, "still alive", event.Message.Content)
}
