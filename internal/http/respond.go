package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"memory-agent/internal/service"
)

// writeServiceError traduce errores de dominio a códigos HTTP. Cualquier
// error no reconocido se loguea y sale como 500 con cuerpo genérico.
func writeServiceError(logger *zap.Logger, c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, service.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
	case errors.Is(err, service.ErrChatForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your chat"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		logger.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
