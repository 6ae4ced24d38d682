package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// refreshWindow keeps a stored token around past its access expiry so the
// refresh token can still be used.
const refreshWindow = 30 * 24 * time.Hour

// TokenCache persists each user's Spotify OAuth token in a TokenStore.
type TokenCache struct {
	store TokenStore
}

// NewTokenCache creates a TokenCache over store.
func NewTokenCache(store TokenStore) *TokenCache {
	return &TokenCache{store: store}
}

func tokenKey(userID int64) string {
	return "spotify:token:" + strconv.FormatInt(userID, 10)
}

// Load reads a user's cached token.
// Returns (nil, nil) if the user has no token.
func (c *TokenCache) Load(ctx context.Context, userID int64) (*oauth2.Token, error) {
	data, err := c.store.Get(ctx, tokenKey(userID))
	if errors.Is(err, ErrTokenNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	return &token, nil
}

// Save stores a user's token until its expiry plus the refresh window.
func (c *TokenCache) Save(ctx context.Context, userID int64, token *oauth2.Token) error {
	if token == nil {
		return errors.New("cannot save nil token")
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	ttl := refreshWindow
	if !token.Expiry.IsZero() {
		ttl += time.Until(token.Expiry)
	}
	if err := c.store.Set(ctx, tokenKey(userID), data, ttl); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}

// Delete removes a user's cached token.
func (c *TokenCache) Delete(ctx context.Context, userID int64) error {
	if err := c.store.Delete(ctx, tokenKey(userID)); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}
