// Package auth signs and verifies the anti-forgery state value carried
// through the marketplace OAuth authorization flow.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sellersync/backend/internal/infrastructure/config"
)

var (
	// ErrInvalidState is returned when the state value fails verification
	ErrInvalidState = errors.New("invalid state value")
	// ErrExpiredState is returned when the state value has expired
	ErrExpiredState = errors.New("state value has expired")
)

// stateClaims are the JWT claims of a signed state value
type stateClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// StateService issues single-purpose signed state values. The callback
// handler verifies the value came from this process and is fresh; the nonce
// makes every value unique.
type StateService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewStateService creates a state service from JWT configuration
func NewStateService(cfg config.JWTConfig) *StateService {
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
	}
}

// Issue returns a new signed state value
func (s *StateService) Issue() (string, error) {
	now := time.Now()
	claims := &stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		Nonce: uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature and freshness of a state value
func (s *StateService) Verify(state string) error {
	if state == "" {
		return ErrInvalidState
	}

	token, err := jwt.ParseWithClaims(state, &stateClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidState
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredState
		}
		return ErrInvalidState
	}
	if !token.Valid {
		return ErrInvalidState
	}
	return nil
}
