package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Gate rejection messages.
const (
	msgUnauthorizedRequest = "Unauthorized request"
	msgInvalidToken        = "Invalid access token. Please try again with a valid token."
	msgUnknownPrincipal    = "Invalid Access Token"
)

// Principal is the authenticated user attached to a request. It never carries
// the password digest or the refresh token.
type Principal struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPrincipal projects a stored user onto its public fields.
func NewPrincipal(u *db.User) *Principal {
	return &Principal{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type contextKey string

const principalContextKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext returns the principal attached by the gate, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// TokenVerifier checks a token of the given kind.
type TokenVerifier interface {
	Verify(token string, kind Kind) (*Claims, error)
}

// PrincipalResolver loads the user a token refers to.
type PrincipalResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
}

// Gate authenticates requests: extract, verify, resolve, attach.
type Gate struct {
	tokens   TokenVerifier
	users    PrincipalResolver
	onReject func(reason string)
}

type GateOption func(*Gate)

// WithRejectHook is called with a short reason for every 401 the gate issues.
func WithRejectHook(fn func(reason string)) GateOption {
	return func(g *Gate) { g.onReject = fn }
}

func NewGate(tokens TokenVerifier, users PrincipalResolver, opts ...GateOption) *Gate {
	g := &Gate{tokens: tokens, users: users}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate runs the pipeline for r and returns the resolved principal.
func (g *Gate) Authenticate(r *http.Request) (*Principal, error) {
	token, err := g.extract(r)
	if err != nil {
		return nil, err
	}
	claims, err := g.verify(token)
	if err != nil {
		return nil, err
	}
	return g.resolve(r.Context(), claims)
}

func (g *Gate) extract(r *http.Request) (string, error) {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}

	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token, nil
		}
	}

	return "", g.reject("missing_token", msgUnauthorizedRequest, nil)
}

func (g *Gate) verify(token string) (*Claims, error) {
	claims, err := g.tokens.Verify(token, AccessToken)
	if err != nil {
		return nil, g.reject("invalid_token", msgInvalidToken, err)
	}
	return claims, nil
}

func (g *Gate) resolve(ctx context.Context, claims *Claims) (*Principal, error) {
	user, err := g.users.GetByID(ctx, claims.PrincipalID())
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, g.reject("unknown_principal", msgUnknownPrincipal, err)
		}
		return nil, apperrors.InternalError("failed to resolve principal").WithCause(err)
	}
	return NewPrincipal(user), nil
}

func (g *Gate) reject(reason, message string, cause error) error {
	if g.onReject != nil {
		g.onReject(reason)
	}
	appErr := apperrors.Unauthorized(message)
	if cause != nil {
		appErr = appErr.WithCause(cause)
	}
	return appErr
}

// Middleware attaches the principal to the request context or writes the
// rejection and stops the chain.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := g.Authenticate(r)
		if err != nil {
			apperrors.WriteError(w, apperrors.GetRequestID(r.Context()), err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}
