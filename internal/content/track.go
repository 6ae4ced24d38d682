// Package content normalizes recommended track payloads into content items.
//
// Payloads arrive as free-form JSON objects shaped like Spotify track objects.
// Only a handful of fields are read; the raw payload is kept verbatim.
package content

import (
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/justestif/anima-analytics/internal/db"
)

// DefaultTitle is stored for payloads without a name.
const DefaultTitle = "Untitled"

// ErrInvalidPayload is returned for payloads that are not JSON objects.
var ErrInvalidPayload = errors.New("recommendation is not a JSON object")

// Track is the normalized view of one recommendation payload.
type Track struct {
	ID          string // Spotify track ID, possibly derived from the URI
	Name        string
	URI         string
	ExternalURL string // external_urls.spotify
	Artists     []string
	AlbumName   string
	PreviewURL  string
	DurationMs  *int
	Popularity  *int

	AlbumData   json.RawMessage // the album object, if any
	ArtistsData json.RawMessage // the artists array, if any
	Raw         json.RawMessage
}

// Parse reads a recommendation payload.
func Parse(raw json.RawMessage) (Track, error) {
	if !gjson.ValidBytes(raw) {
		return Track{}, ErrInvalidPayload
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Track{}, ErrInvalidPayload
	}

	t := Track{
		Name:        root.Get("name").String(),
		URI:         root.Get("uri").String(),
		ExternalURL: root.Get("external_urls.spotify").String(),
		PreviewURL:  root.Get("preview_url").String(),
		Raw:         raw,
	}

	// Prefer the explicit ID; fall back to the last segment of the URI.
	if id := root.Get("id"); id.Type == gjson.String && id.Str != "" {
		t.ID = id.Str
	} else if t.URI != "" {
		parts := strings.Split(t.URI, ":")
		t.ID = parts[len(parts)-1]
	}

	if artists := root.Get("artists"); artists.IsArray() {
		t.ArtistsData = json.RawMessage(artists.Raw)
		artists.ForEach(func(_, a gjson.Result) bool {
			if name := a.Get("name").String(); name != "" {
				t.Artists = append(t.Artists, name)
			}
			return true
		})
	}

	if album := root.Get("album"); album.IsObject() {
		t.AlbumData = json.RawMessage(album.Raw)
		t.AlbumName = album.Get("name").String()
	}

	t.DurationMs = optionalInt(root.Get("duration_ms"))
	t.Popularity = optionalInt(root.Get("popularity"))

	return t, nil
}

// Label identifies a track in error reports: its ID, else its URI.
func (t Track) Label() string {
	if t.ID != "" {
		return t.ID
	}
	return t.URI
}

// HasIdentity reports whether the track can be matched against stored items.
func (t Track) HasIdentity() bool {
	return t.ID != "" || t.ExternalURL != ""
}

// Item converts the track into a new content item.
func (t Track) Item() db.ContentItem {
	title := t.Name
	if title == "" {
		title = DefaultTitle
	}

	item := db.ContentItem{
		ExternalID:  optionalString(t.ID),
		ExternalURL: optionalString(t.ExternalURL),
		URI:         optionalString(t.URI),
		Title:       title,
		Album:       optionalString(t.AlbumName),
		PreviewURL:  optionalString(t.PreviewURL),
		DurationMs:  t.DurationMs,
		Popularity:  t.Popularity,
		AlbumData:   t.AlbumData,
		Artists:     t.ArtistsData,
		RawPayload:  t.Raw,
	}
	if len(t.Artists) > 0 {
		item.Artist = optionalString(strings.Join(t.Artists, ", "))
	}
	return item
}

func optionalInt(r gjson.Result) *int {
	if r.Type != gjson.Number {
		return nil
	}
	v := int(r.Int())
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
