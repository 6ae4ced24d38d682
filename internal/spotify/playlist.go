package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
)

const (
	maxTracksPerRequest = 100

	// DefaultPlaylistLimit is the page size used when none is requested.
	DefaultPlaylistLimit = 20
	maxPlaylistLimit     = 50

	trackURIPrefix = "spotify:track:"
)

// TrackIDFromURI returns the track ID of a "spotify:track:<id>" URI.
func TrackIDFromURI(uri string) (string, bool) {
	id, ok := strings.CutPrefix(uri, trackURIPrefix)
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

// CreatePlaylist creates a new private playlist for the current user.
// Returns the playlist ID and its web URL.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (id, url string, err error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return "", "", err
	}

	playlist, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	if err != nil {
		return "", "", fmt.Errorf("creating playlist: %w", err)
	}

	return playlist.ID.String(), playlist.ExternalURLs["spotify"], nil
}

// AddTracksToPlaylist adds tracks by URI, in batches of 100.
// URIs that are not track URIs are skipped. Adding stops at the first
// failed batch; the count of tracks added before it is returned with the error.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackURIs []string) (int, error) {
	ids := make([]spotify.ID, 0, len(trackURIs))
	for _, uri := range trackURIs {
		if id, ok := TrackIDFromURI(uri); ok {
			ids = append(ids, spotify.ID(id))
		}
	}

	added := 0
	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))
		batch := ids[i:end]

		if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return added, fmt.Errorf("adding tracks (batch %d-%d): %w", i+1, end, err)
		}
		added += len(batch)
	}

	return added, nil
}

// UnfollowPlaylist removes a playlist from the current user's library.
// Spotify has no delete; unfollowing an owned playlist is the equivalent.
func (c *Client) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	if err := c.api.UnfollowPlaylist(ctx, spotify.ID(playlistID)); err != nil {
		return fmt.Errorf("unfollowing playlist: %w", err)
	}
	return nil
}

// Playlists returns the first page of the current user's playlists.
// limit is clamped to [1, 50]; zero means DefaultPlaylistLimit.
func (c *Client) Playlists(ctx context.Context, limit int) (PlaylistPage, error) {
	switch {
	case limit <= 0:
		limit = DefaultPlaylistLimit
	case limit > maxPlaylistLimit:
		limit = maxPlaylistLimit
	}

	page, err := c.api.CurrentUsersPlaylists(ctx, spotify.Limit(limit))
	if err != nil {
		return PlaylistPage{}, fmt.Errorf("listing playlists: %w", err)
	}

	result := PlaylistPage{
		Playlists: make([]Playlist, 0, len(page.Playlists)),
		Total:     int(page.Total),
	}
	for _, p := range page.Playlists {
		result.Playlists = append(result.Playlists, Playlist{
			ID:          p.ID.String(),
			Name:        p.Name,
			Description: p.Description,
			TracksTotal: int(p.Tracks.Total),
			Public:      p.IsPublic,
			URL:         p.ExternalURLs["spotify"],
			Images:      imageURLs(p.Images),
		})
	}
	return result, nil
}
