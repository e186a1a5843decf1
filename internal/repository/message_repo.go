package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"memory-agent/internal/domain"
)

// MessageRepository define el contrato de persistencia para mensajes.
type MessageRepository interface {
	// CreateExchange inserta el mensaje del usuario y su respuesta en una
	// sola transacción: o quedan los dos, o ninguno.
	CreateExchange(ctx context.Context, userMsg, assistantMsg domain.Message) error
	ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error)
}

// PgMessageRepository implementa MessageRepository usando pgxpool.
type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) CreateExchange(ctx context.Context, userMsg, assistantMsg domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Bloquea la fila del chat durante la transacción. Si el chat fue
	// borrado entre autorizar e insertar, esto devuelve pgx.ErrNoRows en
	// lugar de violar la FK.
	var ownerID string
	if err := tx.QueryRow(ctx,
		`SELECT user_id FROM chats WHERE id = $1 FOR SHARE`,
		userMsg.ChatID,
	).Scan(&ownerID); err != nil {
		return err
	}

	const insert = `
		INSERT INTO messages (id, chat_id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, msg := range []domain.Message{userMsg, assistantMsg} {
		if _, err := tx.Exec(ctx, insert,
			msg.ID,
			msg.ChatID,
			msg.UserID,
			msg.Role,
			msg.Content,
			msg.CreatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PgMessageRepository) ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error) {
	// seq desempata los pares creados en el mismo instante.
	const query = `
		SELECT id, chat_id, user_id, role, content, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.UserID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
