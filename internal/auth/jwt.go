// Package auth resolves bearer tokens to users and manages the Spotify
// OAuth2 connection of each user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when a bearer token is missing or invalid.
var ErrUnauthenticated = errors.New("unauthenticated")

// Claims are the JWT claims issued by the account service.
type Claims struct {
	UserID    int64  `json:"user_id"`
	SessionID *int64 `json:"session_id,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity is a resolved caller.
type Identity struct {
	UserID    int64
	SessionID *int64 // login session, if the token carries one
	Email     string
}

// Resolver turns a bearer token into an Identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// JWTResolver verifies HS256-signed tokens.
type JWTResolver struct {
	secret []byte
	issuer string
}

// NewJWTResolver creates a resolver for tokens signed with secret. A
// non-empty issuer is enforced.
func NewJWTResolver(secret, issuer string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), issuer: issuer}
}

// Resolve validates the token and returns its identity. Every failure
// wraps ErrUnauthenticated.
func (r *JWTResolver) Resolve(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.UserID <= 0 {
		return Identity{}, fmt.Errorf("%w: token has no user", ErrUnauthenticated)
	}

	return Identity{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Email:     claims.Email,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
// Returns "" if the header is not a bearer credential.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
