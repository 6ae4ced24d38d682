package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// stateTTL bounds how long an authorization URL stays usable.
const stateTTL = 10 * time.Minute

var (
	// ErrMissingCredentials is returned when the Spotify client ID or secret is not set.
	ErrMissingCredentials = errors.New("missing spotify client id or secret")

	// ErrStateMismatch is returned when the OAuth state is unknown or expired.
	ErrStateMismatch = errors.New("OAuth state mismatch")

	// ErrNotConnected is returned when the user has not connected Spotify.
	ErrNotConnected = errors.New("spotify account not connected")
)

// SpotifyConfig configures the Spotify OAuth2 client.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Exchanger is the subset of the Spotify authenticator the Connector uses.
type Exchanger interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	Client(ctx context.Context, token *oauth2.Token) *http.Client
}

// Connector links users to their Spotify accounts through the OAuth2
// authorization code flow. State values and tokens live in a TokenStore.
type Connector struct {
	auth   Exchanger
	states TokenStore
	tokens *TokenCache
}

// NewConnector creates a Connector using the Spotify accounts service.
// Returns ErrMissingCredentials if the client ID or secret is empty.
func NewConnector(cfg SpotifyConfig, store TokenStore) (*Connector, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadPrivate,
			spotifyauth.ScopeUserReadEmail,
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
		),
	)
	return NewConnectorWith(auth, store), nil
}

// NewConnectorWith creates a Connector around a custom Exchanger.
func NewConnectorWith(auth Exchanger, store TokenStore) *Connector {
	return &Connector{
		auth:   auth,
		states: store,
		tokens: NewTokenCache(store),
	}
}

func stateKey(state string) string {
	return "spotify:state:" + state
}

// AuthURL returns the Spotify authorization URL for a user. The embedded
// state is bound to the user and expires after ten minutes.
func (c *Connector) AuthURL(ctx context.Context, userID int64) (string, error) {
	state := uuid.NewString()
	if err := c.states.Set(ctx, stateKey(state), []byte(strconv.FormatInt(userID, 10)), stateTTL); err != nil {
		return "", fmt.Errorf("storing oauth state: %w", err)
	}
	return c.auth.AuthURL(state), nil
}

// Complete finishes the flow started by AuthURL: it consumes the state,
// exchanges the code and stores the token. Returns the connected user.
func (c *Connector) Complete(ctx context.Context, state, code string) (int64, error) {
	if state == "" {
		return 0, ErrStateMismatch
	}

	data, err := c.states.Get(ctx, stateKey(state))
	if errors.Is(err, ErrTokenNotFound) {
		return 0, ErrStateMismatch
	}
	if err != nil {
		return 0, fmt.Errorf("loading oauth state: %w", err)
	}
	// States are single use.
	_ = c.states.Delete(ctx, stateKey(state))

	userID, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed state", ErrStateMismatch)
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("exchanging code for token: %w", err)
	}
	if err := c.tokens.Save(ctx, userID, token); err != nil {
		return 0, fmt.Errorf("caching token: %w", err)
	}
	return userID, nil
}

// Client returns a Spotify API client for the user. The oauth2 transport
// refreshes expired tokens; a refreshed token is written back to the cache
// once the caller is done via the returned release function.
func (c *Connector) Client(ctx context.Context, userID int64) (*spotifyapi.Client, func(), error) {
	token, err := c.tokens.Load(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading cached token: %w", err)
	}
	if token == nil {
		return nil, nil, ErrNotConnected
	}

	client := spotifyapi.New(c.auth.Client(ctx, token), spotifyapi.WithRetry(true))

	release := func() {
		newToken, err := client.Token()
		if err == nil && newToken.AccessToken != token.AccessToken {
			_ = c.tokens.Save(context.WithoutCancel(ctx), userID, newToken)
		}
	}
	return client, release, nil
}

// Disconnect forgets the user's Spotify token.
func (c *Connector) Disconnect(ctx context.Context, userID int64) error {
	return c.tokens.Delete(ctx, userID)
}
