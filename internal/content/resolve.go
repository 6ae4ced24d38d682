package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/justestif/anima-analytics/internal/db"
)

// Resolve finds the stored item matching the track's identity, creating it if
// none exists. Lookup goes by external ID first, then by external URL.
func Resolve(ctx context.Context, w db.ContentWriter, t Track) (*db.ContentItem, error) {
	if t.ID != "" {
		item, err := w.FindByExternalID(ctx, t.ID)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}

	if t.ExternalURL != "" {
		item, err := w.FindByExternalURL(ctx, t.ExternalURL)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}

	item := t.Item()
	if err := w.Create(ctx, &item); err != nil {
		return nil, fmt.Errorf("creating content item: %w", err)
	}
	return &item, nil
}

// recommendation mirrors the track shape served back to clients for items
// stored without a raw payload.
type recommendation struct {
	ID           *string           `json:"id"`
	Name         string            `json:"name"`
	Artists      json.RawMessage   `json:"artists"`
	Album        json.RawMessage   `json:"album"`
	ExternalURLs map[string]string `json:"external_urls"`
	URI          *string           `json:"uri"`
	PreviewURL   *string           `json:"preview_url"`
	DurationMs   *int              `json:"duration_ms"`
	Popularity   *int              `json:"popularity"`
}

// Recommendation renders a stored item as a recommendation payload. The raw
// payload is returned verbatim when present.
func Recommendation(item db.ContentItem) (json.RawMessage, error) {
	if len(item.RawPayload) > 0 {
		return item.RawPayload, nil
	}

	rec := recommendation{
		ID:         item.ExternalID,
		Name:       item.Title,
		Artists:    orNull(item.Artists),
		Album:      item.AlbumData,
		URI:        item.URI,
		PreviewURL: item.PreviewURL,
		DurationMs: item.DurationMs,
		Popularity: item.Popularity,
	}
	if len(rec.Album) == 0 {
		album, err := json.Marshal(map[string]*string{"name": item.Album})
		if err != nil {
			return nil, fmt.Errorf("encoding album: %w", err)
		}
		rec.Album = album
	}
	if item.ExternalURL != nil {
		rec.ExternalURLs = map[string]string{"spotify": *item.ExternalURL}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding recommendation: %w", err)
	}
	return data, nil
}

func orNull(b json.RawMessage) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return b
}
