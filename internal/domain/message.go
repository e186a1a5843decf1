package domain

import "time"

// Roles posibles de un mensaje. Conjunto cerrado: no se aceptan roles
// arbitrarios desde el request.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
