package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dock-chat-service/internal/chat"
)

// InternalHandler serves the collaborator-only endpoints invoked by the
// registration and team-administration services.
type InternalHandler struct {
	service *chat.Service
}

// NewInternalHandler builds an InternalHandler.
func NewInternalHandler(service *chat.Service) *InternalHandler {
	return &InternalHandler{service: service}
}

// Enroll adds a newly registered user to the global conversation and to
// their team's conversation when one exists.
func (h *InternalHandler) Enroll(c *gin.Context) {
	var req struct {
		UserID int `json:"user_id" binding:"required"`
		TeamID int `json:"team_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.EnrollUser(c.Request.Context(), req.UserID, req.TeamID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateTeamConversation creates the conversation for a freshly created
// team; repeated calls for the same team return the existing conversation.
func (h *InternalHandler) CreateTeamConversation(c *gin.Context) {
	var req struct {
		TeamID int    `json:"team_id" binding:"required"`
		Name   string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.service.CreateTeamConversation(c.Request.Context(), req.TeamID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}
