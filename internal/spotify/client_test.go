package spotify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/zmb3/spotify/v2"
)

// mockAPI records calls made through the API interface.
type mockAPI struct {
	user        *spotify.PrivateUser
	userErr     error
	createErr   error
	failBatch   int // 1-based batch that fails, 0 = none
	batches     [][]spotify.ID
	unfollowed  []spotify.ID
	playlists   []spotify.SimplePlaylist
	createdName string
	public      bool
}

func (m *mockAPI) CurrentUser(context.Context) (*spotify.PrivateUser, error) {
	if m.userErr != nil {
		return nil, m.userErr
	}
	return m.user, nil
}

func (m *mockAPI) CreatePlaylistForUser(_ context.Context, userID, name, _ string, public, _ bool) (*spotify.FullPlaylist, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.createdName = name
	m.public = public
	return &spotify.FullPlaylist{
		SimplePlaylist: spotify.SimplePlaylist{
			ID:           spotify.ID("pl-" + userID),
			Name:         name,
			ExternalURLs: map[string]string{"spotify": "https://open.spotify.com/playlist/pl-" + userID},
		},
	}, nil
}

func (m *mockAPI) AddTracksToPlaylist(_ context.Context, _ spotify.ID, ids ...spotify.ID) (string, error) {
	m.batches = append(m.batches, ids)
	if m.failBatch == len(m.batches) {
		return "", errors.New("rate limited")
	}
	return "snapshot", nil
}

func (m *mockAPI) UnfollowPlaylist(_ context.Context, id spotify.ID) error {
	m.unfollowed = append(m.unfollowed, id)
	return nil
}

func (m *mockAPI) CurrentUsersPlaylists(context.Context, ...spotify.RequestOption) (*spotify.SimplePlaylistPage, error) {
	return &spotify.SimplePlaylistPage{Playlists: m.playlists}, nil
}

func trackURIs(n int) []string {
	uris := make([]string, n)
	for i := range uris {
		uris[i] = fmt.Sprintf("spotify:track:t%d", i)
	}
	return uris
}

func TestTrackIDFromURI(t *testing.T) {
	tests := []struct {
		uri    string
		wantID string
		wantOK bool
	}{
		{"spotify:track:abc123", "abc123", true},
		{"spotify:album:abc123", "", false},
		{"spotify:track:", "", false},
		{"spotify:track:a:b", "", false},
		{"https://open.spotify.com/track/abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		id, ok := TrackIDFromURI(tt.uri)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("TrackIDFromURI(%q) = %q, %v; want %q, %v", tt.uri, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestProfile(t *testing.T) {
	api := &mockAPI{user: &spotify.PrivateUser{
		User: spotify.User{
			ID:          "user1",
			DisplayName: "Ana",
			Images:      []spotify.Image{{URL: "https://img/1"}, {URL: ""}},
		},
		Email:   "ana@example.com",
		Country: "AR",
		Product: "premium",
	}}

	profile, err := New(api).Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.ID != "user1" || profile.DisplayName != "Ana" || profile.Email != "ana@example.com" {
		t.Errorf("Profile() = %+v", profile)
	}
	if profile.Country != "AR" || profile.Product != "premium" {
		t.Errorf("Profile() country/product = %q/%q", profile.Country, profile.Product)
	}
	if len(profile.Images) != 1 || profile.Images[0] != "https://img/1" {
		t.Errorf("Images = %v, want [https://img/1]", profile.Images)
	}
}

func TestProfile_Error(t *testing.T) {
	api := &mockAPI{userErr: errors.New("token expired")}
	if _, err := New(api).Profile(context.Background()); err == nil {
		t.Error("Profile() should fail when the API fails")
	}
}

func TestCreatePlaylist(t *testing.T) {
	api := &mockAPI{user: &spotify.PrivateUser{User: spotify.User{ID: "user1"}}}

	id, url, err := New(api).CreatePlaylist(context.Background(), "Ánima - Feliz (87%)", "desc", false)
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	if id != "pl-user1" {
		t.Errorf("id = %q, want pl-user1", id)
	}
	if url != "https://open.spotify.com/playlist/pl-user1" {
		t.Errorf("url = %q", url)
	}
	if api.createdName != "Ánima - Feliz (87%)" || api.public {
		t.Errorf("created name=%q public=%v", api.createdName, api.public)
	}
}

func TestAddTracksToPlaylist(t *testing.T) {
	tests := []struct {
		name        string
		uris        []string
		failBatch   int
		wantAdded   int
		wantBatches []int
		wantErr     bool
	}{
		{name: "empty", uris: nil, wantAdded: 0, wantBatches: nil},
		{name: "single batch", uris: trackURIs(3), wantAdded: 3, wantBatches: []int{3}},
		{name: "exact batch", uris: trackURIs(100), wantAdded: 100, wantBatches: []int{100}},
		{name: "multiple batches", uris: trackURIs(250), wantAdded: 250, wantBatches: []int{100, 100, 50}},
		{
			name:        "non-track uris skipped",
			uris:        []string{"spotify:track:a", "spotify:episode:b", "", "spotify:track:c"},
			wantAdded:   2,
			wantBatches: []int{2},
		},
		{
			name:        "stops at failed batch",
			uris:        trackURIs(250),
			failBatch:   2,
			wantAdded:   100,
			wantBatches: []int{100, 100},
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{failBatch: tt.failBatch}
			added, err := New(api).AddTracksToPlaylist(context.Background(), "pl", tt.uris)

			if (err != nil) != tt.wantErr {
				t.Fatalf("AddTracksToPlaylist() error = %v, wantErr %v", err, tt.wantErr)
			}
			if added != tt.wantAdded {
				t.Errorf("added = %d, want %d", added, tt.wantAdded)
			}
			if len(api.batches) != len(tt.wantBatches) {
				t.Fatalf("got %d batches, want %d", len(api.batches), len(tt.wantBatches))
			}
			for i, size := range tt.wantBatches {
				if len(api.batches[i]) != size {
					t.Errorf("batch %d size = %d, want %d", i, len(api.batches[i]), size)
				}
			}
		})
	}
}

func TestUnfollowPlaylist(t *testing.T) {
	api := &mockAPI{}
	if err := New(api).UnfollowPlaylist(context.Background(), "pl1"); err != nil {
		t.Fatalf("UnfollowPlaylist() error = %v", err)
	}
	if len(api.unfollowed) != 1 || api.unfollowed[0] != "pl1" {
		t.Errorf("unfollowed = %v, want [pl1]", api.unfollowed)
	}
}

func TestPlaylists(t *testing.T) {
	api := &mockAPI{playlists: []spotify.SimplePlaylist{
		{
			ID:           "p1",
			Name:         "Road Trip",
			Description:  "long drives",
			IsPublic:     true,
			ExternalURLs: map[string]string{"spotify": "https://open.spotify.com/playlist/p1"},
			Images:       []spotify.Image{{URL: "https://img/p1"}},
		},
		{ID: "p2", Name: "Empty"},
	}}

	page, err := New(api).Playlists(context.Background(), 0)
	if err != nil {
		t.Fatalf("Playlists() error = %v", err)
	}
	if len(page.Playlists) != 2 {
		t.Fatalf("got %d playlists, want 2", len(page.Playlists))
	}

	first := page.Playlists[0]
	if first.ID != "p1" || first.Name != "Road Trip" || first.Description != "long drives" {
		t.Errorf("first playlist = %+v", first)
	}
	if !first.Public || first.URL != "https://open.spotify.com/playlist/p1" {
		t.Errorf("first playlist public/url = %v/%q", first.Public, first.URL)
	}
	if len(first.Images) != 1 {
		t.Errorf("first playlist images = %v", first.Images)
	}
	if page.Playlists[1].Images == nil {
		t.Error("images should be an empty slice, not nil")
	}
}
