package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"memory-agent/internal/domain"
	"memory-agent/internal/service"
)

// ChatHandler mantiene dependencias para endpoints de chats y mensajes.
type ChatHandler struct {
	logger      *zap.Logger
	chatServ    *service.ChatService
	messageServ *service.MessageService
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(logger *zap.Logger, chatServ *service.ChatService, messageServ *service.MessageService) *ChatHandler {
	return &ChatHandler{
		logger:      logger,
		chatServ:    chatServ,
		messageServ: messageServ,
	}
}

// CreateChat maneja POST /chats. El título es opcional.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, ok := GetAuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	chat, err := h.chatServ.Create(c.Request.Context(), userID, req.Title)
	if err != nil {
		writeServiceError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, chat)
}

// ListChats maneja GET /chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := GetAuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	chats, err := h.chatServ.List(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(h.logger, c, err)
		return
	}
	if chats == nil {
		chats = []domain.Chat{}
	}

	c.JSON(http.StatusOK, chats)
}

// RenameChat maneja PATCH /chats/:chat_id. El título es obligatorio pero
// puede ser cadena vacía; se guarda tal cual llega.
func (h *ChatHandler) RenameChat(c *gin.Context) {
	userID, ok := GetAuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		Title *string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid rename chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	chat, err := h.chatServ.Rename(c.Request.Context(), c.Param("chat_id"), userID, *req.Title)
	if err != nil {
		writeServiceError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, chat)
}

// DeleteChat maneja DELETE /chats/:chat_id.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := GetAuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	if err := h.chatServ.Delete(c.Request.Context(), c.Param("chat_id"), userID); err != nil {
		writeServiceError(h.logger, c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SendMessage maneja POST /chats/:chat_id/messages y devuelve el mensaje
// del asistente generado en la misma transacción.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := GetAuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		Content *string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg, err := h.messageServ.Send(c.Request.Context(), c.Param("chat_id"), userID, *req.Content)
	if err != nil {
		writeServiceError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// ListMessages maneja GET /chats/:chat_id/messages.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := GetAuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	messages, err := h.messageServ.List(c.Request.Context(), c.Param("chat_id"), userID)
	if err != nil {
		writeServiceError(h.logger, c, err)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	c.JSON(http.StatusOK, messages)
}
