package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"memory-agent/internal/domain"
	"memory-agent/internal/repository"
)

// assistantReply es la respuesta fija que se almacena por cada mensaje
// del usuario.
const assistantReply = "Message received"

// MessageService maneja el intercambio de mensajes dentro de un chat.
type MessageService struct {
	repo  repository.MessageRepository
	chats *ChatService
	now   func() time.Time
}

func NewMessageService(repo repository.MessageRepository, chats *ChatService) *MessageService {
	return &MessageService{
		repo:  repo,
		chats: chats,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Send guarda el mensaje del usuario y la respuesta del asistente dentro
// de una sola transacción y devuelve la respuesta. La respuesta queda
// atribuida al usuario que la provocó, no a una identidad del sistema.
func (s *MessageService) Send(ctx context.Context, chatID, userID, content string) (domain.Message, error) {
	if _, err := s.chats.Authorize(ctx, chatID, userID); err != nil {
		return domain.Message{}, err
	}

	now := s.now()
	userMsg := domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserID:    userID,
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: now,
	}
	assistantMsg := domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserID:    userID,
		Role:      domain.RoleAssistant,
		Content:   assistantReply,
		CreatedAt: now,
	}

	if err := s.repo.CreateExchange(ctx, userMsg, assistantMsg); err != nil {
		// El chat desapareció entre autorizar e insertar.
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, ErrChatNotFound
		}
		return domain.Message{}, err
	}
	return assistantMsg, nil
}

// List devuelve el historial completo del chat en orden cronológico,
// conservando el orden usuario-asistente de cada envío.
func (s *MessageService) List(ctx context.Context, chatID, userID string) ([]domain.Message, error) {
	if _, err := s.chats.Authorize(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByChatID(ctx, chatID)
}
