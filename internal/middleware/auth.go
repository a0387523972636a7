package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dock-chat-service/internal/auth"
)

// Context keys populated by Auth for downstream handlers.
const (
	ContextUserID = "userID"
	ContextTeamID = "teamID"
	ContextRole   = "role"
)

// Auth validates the session token (cookie, Bearer header, or token query
// parameter) and stores the caller identity on the gin context.
func Auth(manager *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}

		session, err := manager.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextUserID, session.UserID)
		c.Set(ContextTeamID, session.TeamID)
		c.Set(ContextRole, session.Role)
		c.Next()
	}
}

// InternalAuth gates collaborator-only endpoints behind a shared token. An
// empty configured token disables the surface entirely.
func InternalAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("X-Internal-Token") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
