// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

// API is the subset of the Spotify Web API client used by Client.
// *spotify.Client satisfies it.
type API interface {
	CurrentUser(ctx context.Context) (*spotify.PrivateUser, error)
	CreatePlaylistForUser(ctx context.Context, userID, playlistName, description string, public bool, collaborative bool) (*spotify.FullPlaylist, error)
	AddTracksToPlaylist(ctx context.Context, playlistID spotify.ID, trackIDs ...spotify.ID) (string, error)
	UnfollowPlaylist(ctx context.Context, playlist spotify.ID) error
	CurrentUsersPlaylists(ctx context.Context, opts ...spotify.RequestOption) (*spotify.SimplePlaylistPage, error)
}

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api API
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api API) *Client {
	return &Client{api: api}
}

// UserID returns the current user's Spotify ID.
func (c *Client) UserID(ctx context.Context) (string, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("getting current user: %w", err)
	}
	return user.ID, nil
}

// Profile returns the current user's Spotify profile.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("getting current user: %w", err)
	}

	profile := Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
		Product:     user.Product,
		Followers:   int(user.Followers.Count),
		Images:      imageURLs(user.Images),
	}
	return profile, nil
}

func imageURLs(images []spotify.Image) []string {
	urls := make([]string, 0, len(images))
	for _, img := range images {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	return urls
}
