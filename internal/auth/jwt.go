package auth

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/chillserv/fieldops/internal/config"
	"github.com/chillserv/fieldops/internal/identity"
)

var (
	ErrInvalidToken = errors.New("invalid_token")
	ErrNoSecret     = errors.New("jwt_secret_not_configured")
)

const defaultTokenTTL = 24 * time.Hour

type Claims struct {
	Sub   string `json:"sub"`
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Manager signs and validates the HS256 access tokens used by the API.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		secret: []byte(cfg.AuthJWTSecret),
		ttl:    defaultTokenTTL,
	}
}

func (m *Manager) CreateAccessToken(actor identity.Actor) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrNoSecret
	}
	claims := Claims{
		Sub:   strconv.FormatInt(actor.ID, 10),
		Role:  actor.Role,
		Email: actor.Email,
		Name:  actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseValidate returns the actor encoded in the token or ErrInvalidToken.
func (m *Manager) ParseValidate(tokenStr string) (identity.Actor, error) {
	if len(m.secret) == 0 {
		return identity.Actor{}, ErrNoSecret
	}
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return identity.Actor{}, ErrInvalidToken
	}
	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return identity.Actor{}, ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Sub, 10, 64)
	if err != nil {
		return identity.Actor{}, ErrInvalidToken
	}
	return identity.Actor{
		ID:    id,
		Name:  claims.Name,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}
