package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/justestif/anima-analytics/internal/auth"
	"github.com/justestif/anima-analytics/internal/playlists"
	"github.com/justestif/anima-analytics/internal/spotify"
)

// SpotifyAccounts connects users to Spotify and reads their accounts.
type SpotifyAccounts interface {
	AuthURL(ctx context.Context, userID int64) (string, error)
	Complete(ctx context.Context, state, code string) (int64, error)
	Disconnect(ctx context.Context, userID int64) error
	Profile(ctx context.Context, userID int64) (spotify.Profile, error)
	Playlists(ctx context.Context, userID int64, limit int) (spotify.PlaylistPage, error)
}

// ConnectorAccounts implements SpotifyAccounts with an auth.Connector.
type ConnectorAccounts struct {
	*auth.Connector
}

// Profile returns the user's Spotify profile.
func (a ConnectorAccounts) Profile(ctx context.Context, userID int64) (spotify.Profile, error) {
	api, release, err := a.Client(ctx, userID)
	if err != nil {
		return spotify.Profile{}, err
	}
	defer release()
	return spotify.New(api).Profile(ctx)
}

// Playlists returns the user's playlists.
func (a ConnectorAccounts) Playlists(ctx context.Context, userID int64, limit int) (spotify.PlaylistPage, error) {
	api, release, err := a.Client(ctx, userID)
	if err != nil {
		return spotify.PlaylistPage{}, err
	}
	defer release()
	return spotify.New(api).Playlists(ctx, limit)
}

// SpotifyLogin returns the Spotify authorization URL (GET /v1/auth/spotify).
func (h *Handlers) SpotifyLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.spotify.AuthURL(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": url})
}

// SpotifyCallback completes the OAuth flow (GET /v1/auth/spotify/callback).
func (h *Handlers) SpotifyCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errMsg := q.Get("error"); errMsg != "" {
		writeError(w, http.StatusBadRequest, "spotify auth error: "+errMsg)
		return
	}
	if q.Get("code") == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	uid, err := h.spotify.Complete(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user_id": uid,
		"message": "spotify account connected",
	})
}

// SpotifyDisconnect forgets the caller's Spotify token
// (DELETE /v1/auth/spotify).
func (h *Handlers) SpotifyDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.spotify.Disconnect(r.Context(), userID(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SpotifyUserInfo returns the connected Spotify profile
// (GET /v1/spotify/user-info).
func (h *Handlers) SpotifyUserInfo(w http.ResponseWriter, r *http.Request) {
	profile, err := h.spotify.Profile(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": profile})
}

// SpotifyPlaylists lists the caller's playlists (GET /v1/spotify/playlists?limit=).
func (h *Handlers) SpotifyPlaylists(w http.ResponseWriter, r *http.Request) {
	limit := spotify.DefaultPlaylistLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	page, err := h.spotify.Playlists(r.Context(), userID(r), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"playlists": page.Playlists,
		"total":     page.Total,
	})
}

// CreatePlaylist exports an analysis to a new playlist
// (POST /v1/spotify/create-playlist).
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlists.Request
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.playlists.Create(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
