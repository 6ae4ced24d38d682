package spotify

// Profile is the connected user's Spotify account.
type Profile struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email"`
	Followers   int      `json:"followers"`
	Country     string   `json:"country"`
	Product     string   `json:"product"`
	Images      []string `json:"images"`
}

// Playlist is a summary of one of the user's playlists.
type Playlist struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TracksTotal int      `json:"tracks_total"`
	Public      bool     `json:"public"`
	URL         string   `json:"url"`
	Images      []string `json:"images"`
}

// PlaylistPage is one page of the user's playlists.
type PlaylistPage struct {
	Playlists []Playlist `json:"playlists"`
	Total     int        `json:"total"`
}
