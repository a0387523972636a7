package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dock-chat-service/internal/chat"
	"dock-chat-service/internal/mocks"
	"dock-chat-service/internal/models"
	"dock-chat-service/internal/repositories"
)

func newInternalFixture() (*gin.Engine, *mocks.ConversationRepositoryMock) {
	gin.SetMode(gin.TestMode)

	convRepo := new(mocks.ConversationRepositoryMock)
	service := chat.NewService(convRepo, new(mocks.MessageRepositoryMock), new(mocks.BroadcasterMock), zerolog.Nop())
	handler := NewInternalHandler(service)

	router := gin.New()
	router.POST("/internal/enrollments", handler.Enroll)
	router.POST("/internal/team-conversations", handler.CreateTeamConversation)
	return router, convRepo
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestEnroll(t *testing.T) {
	router, convRepo := newInternalFixture()

	convRepo.On("FindGlobal", mock.Anything).Return(models.Conversation{ID: 1, Type: models.ConversationGlobal}, nil).Once()
	convRepo.On("AddParticipant", mock.Anything, 1, 5).Return(nil).Once()
	convRepo.On("FindByTeam", mock.Anything, 7).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	rec := postJSON(t, router, "/internal/enrollments", gin.H{"user_id": 5, "team_id": 7})
	require.Equal(t, http.StatusNoContent, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestEnrollMissingUserID(t *testing.T) {
	router, convRepo := newInternalFixture()

	rec := postJSON(t, router, "/internal/enrollments", gin.H{"team_id": 7})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	convRepo.AssertNotCalled(t, "FindGlobal", mock.Anything)
}

func TestCreateTeamConversation(t *testing.T) {
	router, convRepo := newInternalFixture()

	conv := models.Conversation{ID: 2, Type: models.ConversationTeam}
	convRepo.On("CreateTeamConversation", mock.Anything, 7, "Team Night Shift").Return(conv, nil).Once()

	rec := postJSON(t, router, "/internal/team-conversations", gin.H{"team_id": 7, "name": "Night Shift"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 2, got.ID)
}

func TestCreateTeamConversationMissingTeamID(t *testing.T) {
	router, _ := newInternalFixture()

	rec := postJSON(t, router, "/internal/team-conversations", gin.H{"name": "Night Shift"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
