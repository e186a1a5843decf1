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

// ChatService maneja el ciclo de vida de los chats y la verificación
// de pertenencia que protege todas las operaciones sobre un chat.
type ChatService struct {
	repo repository.ChatRepository
	now  func() time.Time
}

var (
	ErrChatNotFound  = errors.New("chat not found")
	ErrChatForbidden = errors.New("not your chat")
)

const defaultTitleLayout = "2006-01-02 15:04"

func NewChatService(repo repository.ChatRepository) *ChatService {
	return &ChatService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create persiste un chat nuevo. Sin título explícito se genera uno a
// partir de la hora UTC actual, con precisión de minutos.
func (s *ChatService) Create(ctx context.Context, ownerID, title string) (domain.Chat, error) {
	now := s.now()
	if title == "" {
		title = "Chat " + now.Format(defaultTitleLayout)
	}
	chat := domain.Chat{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Title:     title,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, chat); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// List devuelve los chats del usuario, el más reciente primero.
func (s *ChatService) List(ctx context.Context, ownerID string) ([]domain.Chat, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Authorize carga el chat y verifica que userID sea su dueño. Se ejecuta
// en cada request; la decisión nunca se cachea entre requests.
func (s *ChatService) Authorize(ctx context.Context, chatID, userID string) (domain.Chat, error) {
	chat, err := s.repo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Chat{}, ErrChatNotFound
		}
		return domain.Chat{}, err
	}
	if chat.UserID != userID {
		return domain.Chat{}, ErrChatForbidden
	}
	return chat, nil
}

// Rename reemplaza el título tal cual llega, cadena vacía incluida.
func (s *ChatService) Rename(ctx context.Context, chatID, userID, title string) (domain.Chat, error) {
	if _, err := s.Authorize(ctx, chatID, userID); err != nil {
		return domain.Chat{}, err
	}
	// UPDATE condicionado al dueño: si otro request borró el chat entre
	// autorizar y mutar, no hay fila que actualizar.
	chat, err := s.repo.RenameOwned(ctx, chatID, userID, title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Chat{}, ErrChatNotFound
		}
		return domain.Chat{}, err
	}
	return chat, nil
}

// Delete elimina el chat y, por cascada, todos sus mensajes.
func (s *ChatService) Delete(ctx context.Context, chatID, userID string) error {
	if _, err := s.Authorize(ctx, chatID, userID); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteOwned(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrChatNotFound
	}
	return nil
}
