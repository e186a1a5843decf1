package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"memory-agent/internal/domain"
	"memory-agent/internal/repository"
)

// AuthService coordina registro, login y baja de usuarios.
type AuthService struct {
	logger *zap.Logger
	users  repository.UserRepository
	tokens *TokenService
	now    func() time.Time
}

var (
	// ErrInvalidCredentials cubre tanto email desconocido como contraseña
	// incorrecta: el login nunca revela cuál de los dos falló.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

const pgUniqueViolation = "23505"

func NewAuthService(logger *zap.Logger, users repository.UserRepository, tokens *TokenService) *AuthService {
	return &AuthService{
		logger: logger,
		users:  users,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register da de alta al usuario y devuelve un token recién emitido.
// El email se compara de forma exacta, sensible a mayúsculas.
func (s *AuthService) Register(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return "", ErrDuplicateEmail
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Dos registros simultáneos con el mismo email: el índice único
		// decide y el perdedor recibe el mismo error que el pre-chequeo.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", ErrDuplicateEmail
		}
		return "", err
	}

	return s.tokens.Issue(user.ID)
}

// Login autentica por email y contraseña y devuelve un token nuevo.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(user.ID)
}

// DeleteAccount elimina al usuario; las FKs arrastran chats y mensajes.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	err := s.users.Delete(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}
