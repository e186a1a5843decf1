package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"memory-agent/internal/service"
)

const authUserIDKey = "auth_user_id"

// BearerAuthMiddleware valida el token bearer y guarda el id del usuario
// en el contexto del request.
func BearerAuthMiddleware(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		userID, err := tokens.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(authUserIDKey, userID)
		c.Next()
	}
}

// GetAuthUserID obtiene el id del usuario autenticado desde el contexto.
func GetAuthUserID(c *gin.Context) (string, bool) {
	val, ok := c.Get(authUserIDKey)
	if !ok {
		return "", false
	}
	userID, ok := val.(string)
	return userID, ok && userID != ""
}
