package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload of a session token.
type Claims struct {
	UserID string         `json:"userId"`
	Email  string         `json:"email"`
	Extra  map[string]any `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// Session is what Create hands back to the client.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
}

// Identity is the decoded form of a valid token.
type Identity struct {
	UserID    string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Principal is attached to the request context once a token is accepted.
type Principal struct {
	UserID string
	Email  string
	Token  string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
