package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/intellipatent/intellipatent/internal/pkg/errcode"
	"github.com/intellipatent/intellipatent/internal/pkg/jwt"
	"github.com/intellipatent/intellipatent/internal/pkg/response"
)

const ContextSessionIDKey = "session_id"

// SessionAuth validates the Bearer token and puts the session id it
// names into the request context.
func SessionAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(parts[1], secret)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextSessionIDKey, claims.SessionID)
		c.Next()
	}
}
