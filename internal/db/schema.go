package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Los borrados en cascada (user -> chats -> messages) viven en las FKs.
// La columna seq de messages desempata mensajes creados en el mismo
// instante: el par usuario/asistente de un envío se lee en orden de inserción.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id uuid PRIMARY KEY,
		email text NOT NULL UNIQUE,
		password_hash text NOT NULL,
		created_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id uuid PRIMARY KEY,
		user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title text,
		created_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id uuid PRIMARY KEY,
		chat_id uuid NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role text NOT NULL,
		content text NOT NULL,
		created_at timestamptz NOT NULL,
		seq bigserial
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chats_user_id ON chats (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages (chat_id)`,
}

// Migrate crea el esquema si todavía no existe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
