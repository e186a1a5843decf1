package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService emite y valida tokens de acceso JWT.
// No hay lista de revocación: la expiración es el único mecanismo
// de invalidación.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	method jwt.SigningMethod
	issuer string
	now    func() time.Time
}

var (
	ErrTokenInvalid     = errors.New("token invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenUnsupported = errors.New("token algorithm not supported")
)

const defaultTokenTTL = 7 * 24 * time.Hour

// NewTokenService construye el servicio con el secreto y algoritmo dados.
// Solo se aceptan los algoritmos HMAC de la familia HS*.
func NewTokenService(secret, algorithm string, ttl time.Duration) (*TokenService, error) {
	var method jwt.SigningMethod
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "HS256", "":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, ErrTokenUnsupported
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		method: method,
		issuer: "memory-agent",
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Issue firma un token con sub = userID y expiración now + ttl.
func (s *TokenService) Issue(userID string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(userID) == "" {
		return "", ErrTokenInvalid
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
}

// Verify valida firma y expiración y devuelve el sub (id de usuario).
func (s *TokenService) Verify(tokenString string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return "", ErrTokenInvalid
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	var claims jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.Issuer != s.issuer {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
