package db

import (
	"time"

	"github.com/goccy/go-json"
)

// Session is a bounded login period of a user. EndedAt is nil while open.
type Session struct {
	ID        int64
	UserID    int64
	StartedAt time.Time
	EndedAt   *time.Time // nullable
}

// Emotion is one label of the emotion vocabulary.
type Emotion struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Analysis is one emotion-detection result recorded during a session.
type Analysis struct {
	ID               int64
	SessionID        int64
	EmotionID        int64
	OccurredAt       time.Time
	Confidence       float64
	EmotionsDetected map[string]float64
	// Recommendations holds the payloads exactly as submitted. Kept for
	// analyses saved before content items were linked.
	Recommendations []json.RawMessage
}

// AnalysisWithEmotion is an Analysis joined with its emotion label.
type AnalysisWithEmotion struct {
	Analysis
	EmotionName string
}

// AnalysisFilter narrows analysis listings.
type AnalysisFilter struct {
	Emotion string // empty = all
}

// ContentItem is a recommended track, deduplicated by external identity.
type ContentItem struct {
	ID          int64
	ExternalID  *string // nullable - Spotify track ID
	ExternalURL *string // nullable
	URI         *string // nullable
	Title       string
	Artist      *string // nullable - comma-separated artist names
	Album       *string // nullable
	PreviewURL  *string // nullable
	DurationMs  *int    // nullable
	Popularity  *int    // nullable
	AlbumData   json.RawMessage
	Artists     json.RawMessage
	RawPayload  json.RawMessage
	CreatedAt   time.Time
}

// AnalysisContent links an analysis to a content item.
type AnalysisContent struct {
	AnalysisID int64
	ContentID  int64
	Position   int // index of the payload in the submitted recommendations
}
