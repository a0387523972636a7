package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dock-chat-service/internal/chat"
	"dock-chat-service/internal/models"
)

// ConversationHandler serves the authoritative conversation and message
// endpoints.
type ConversationHandler struct {
	service *chat.Service
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(service *chat.Service) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// List returns the caller's conversations with last message and unread count.
func (h *ConversationHandler) List(c *gin.Context) {
	summaries, err := h.service.ListConversations(c.Request.Context(), callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// Create resolves the canonical private conversation between the caller and
// another user: 201 when a conversation was created, 200 when it already
// existed.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req struct {
		Type          models.ConversationType `json:"type" binding:"required"`
		ParticipantID int                     `json:"participant_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type != models.ConversationPrivate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation type"})
		return
	}

	conv, created, err := h.service.ResolvePrivateConversation(c.Request.Context(), callerFromContext(c), req.ParticipantID)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conv)
}

// GetMessages returns one backward page of a conversation's messages.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	cursor, _ := strconv.Atoi(c.DefaultQuery("cursor", "0"))

	page, err := h.service.ListMessages(c.Request.Context(), callerFromContext(c), conversationID, limit, cursor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// PostMessage persists a message and triggers fan-out.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.service.PostMessage(c.Request.Context(), callerFromContext(c), conversationID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead batches the caller's missing read receipts for the conversation.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	count, err := h.service.MarkRead(c.Request.Context(), callerFromContext(c), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func conversationIDParam(c *gin.Context) (int, bool) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return conversationID, true
}
