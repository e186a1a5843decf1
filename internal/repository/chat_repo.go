package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"memory-agent/internal/domain"
)

// ChatRepository define el contrato de persistencia para chats.
// Las mutaciones condicionadas al dueño (RenameOwned, DeleteOwned) permiten
// cerrar la ventana entre autorizar y mutar con una sola sentencia.
type ChatRepository interface {
	Create(ctx context.Context, chat domain.Chat) error
	GetByID(ctx context.Context, id string) (domain.Chat, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Chat, error)
	RenameOwned(ctx context.Context, id, ownerID, title string) (domain.Chat, error)
	DeleteOwned(ctx context.Context, id, ownerID string) (bool, error)
}

// PgChatRepository implementa ChatRepository usando pgxpool.
type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

func (r *PgChatRepository) Create(ctx context.Context, chat domain.Chat) error {
	const query = `
		INSERT INTO chats (id, user_id, title, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query,
		chat.ID,
		chat.UserID,
		chat.Title,
		chat.CreatedAt,
	)
	return err
}

func (r *PgChatRepository) GetByID(ctx context.Context, id string) (domain.Chat, error) {
	const query = `
		SELECT id, user_id, title, created_at
		FROM chats
		WHERE id = $1
	`
	var chat domain.Chat
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Title,
		&chat.CreatedAt,
	)
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

func (r *PgChatRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Chat, error) {
	const query = `
		SELECT id, user_id, title, created_at
		FROM chats
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		var chat domain.Chat
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.CreatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// RenameOwned actualiza el título solo si el chat pertenece a ownerID.
// Devuelve pgx.ErrNoRows cuando el chat ya no existe o cambió de dueño.
func (r *PgChatRepository) RenameOwned(ctx context.Context, id, ownerID, title string) (domain.Chat, error) {
	const query = `
		UPDATE chats
		SET title = $3
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, created_at
	`
	var chat domain.Chat
	err := r.pool.QueryRow(ctx, query, id, ownerID, title).Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Title,
		&chat.CreatedAt,
	)
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// DeleteOwned borra el chat solo si pertenece a ownerID; la FK arrastra
// sus mensajes en la misma operación.
func (r *PgChatRepository) DeleteOwned(ctx context.Context, id, ownerID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
