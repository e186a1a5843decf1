package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"memory-agent/internal/service"
)

// AuthHandler mantiene dependencias para endpoints de autenticación.
type AuthHandler struct {
	logger   *zap.Logger
	authServ *service.AuthService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		authServ: authServ,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := h.authServ.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := h.authServ.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// DeleteAccount maneja DELETE /users/me. El borrado arrastra todos los
// chats del usuario y sus mensajes.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID, ok := GetAuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	if err := h.authServ.DeleteAccount(c.Request.Context(), userID); err != nil {
		writeServiceError(h.logger, c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
