package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/callcoach/backend/internal/auth"
	"github.com/callcoach/backend/pkg/response"
)

// Context keys set by the JWT middleware. ContextUserID holds a uuid.UUID.
const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
)

// JWT rejects requests without a valid bearer token and stores the caller's
// identity in the gin context for downstream handlers.
func JWT(tokens *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			response.Unauthorized(c, "missing or malformed authorization header")
			c.Abort()
			return
		}

		claims, err := tokens.Validate(raw)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
