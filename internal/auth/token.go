package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Kind selects which secret signs and verifies a token.
type Kind int

const (
	AccessToken Kind = iota
	RefreshToken
)

func (k Kind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// RefreshTokenStore persists the single live refresh token of a user.
type RefreshTokenStore interface {
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	store         RefreshTokenStore
	now           func() time.Time
}

type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(cfg TokenConfig, store RefreshTokenStore, opts ...TokenOption) *TokenService {
	s := &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		store:         store,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueAccess signs a short-lived access token for userID.
func (s *TokenService) IssueAccess(userID uuid.UUID) (string, error) {
	return s.sign(userID, s.accessSecret, s.accessTTL)
}

// IssueRefresh signs a refresh token and records it as the user's live one.
func (s *TokenService) IssueRefresh(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := s.sign(userID, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return "", err
	}
	if err := s.store.SetRefreshToken(ctx, userID, token); err != nil {
		return "", fmt.Errorf("persist refresh token: %w", err)
	}
	return token, nil
}

func (s *TokenService) sign(userID uuid.UUID, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Verify checks signature, algorithm and expiry against the secret for kind
// and returns the claims. Every failure is reported as ErrInvalidToken.
func (s *TokenService) Verify(tokenString string, kind Kind) (*Claims, error) {
	secret := s.accessSecret
	if kind == RefreshToken {
		secret = s.refreshSecret
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%w: missing or malformed id claim", ErrInvalidToken)
	}

	return claims, nil
}

// PrincipalID returns the user id carried by verified claims.
func (c *Claims) PrincipalID() uuid.UUID {
	id, _ := uuid.Parse(c.UserID)
	return id
}
