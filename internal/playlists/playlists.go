// Package playlists exports an analysis' recommendations to a Spotify playlist.
package playlists

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/justestif/anima-analytics/internal/analyses"
	"github.com/justestif/anima-analytics/internal/auth"
	"github.com/justestif/anima-analytics/internal/logging"
	"github.com/justestif/anima-analytics/internal/metrics"
	"github.com/justestif/anima-analytics/internal/spotify"
)

// ErrNoTracks is returned when no track could be added to the new playlist.
var ErrNoTracks = errors.New("no valid tracks could be added to the playlist")

var validate = validator.New(validator.WithRequiredStructEnabled())

// emotionLabels are the display names used in playlist titles.
var emotionLabels = map[string]string{
	"happy":     "Feliz",
	"sad":       "Triste",
	"angry":     "Enojado",
	"relaxed":   "Relajado",
	"energetic": "Energético",
}

// PlaylistAPI is the Spotify surface needed to build a playlist.
type PlaylistAPI interface {
	CreatePlaylist(ctx context.Context, name, description string, public bool) (id, url string, err error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackURIs []string) (int, error)
	UnfollowPlaylist(ctx context.Context, playlistID string) error
}

// ClientSource hands out a user's Spotify client. release must be called
// when the client is no longer needed.
type ClientSource interface {
	PlaylistClient(ctx context.Context, userID int64) (api PlaylistAPI, release func(), err error)
}

// AnalysisLookup loads an analysis within the user's scope.
type AnalysisLookup interface {
	Detail(ctx context.Context, userID, analysisID int64) (*analyses.Detail, error)
}

// Request asks for a playlist built from an analysis. Emotion and
// Confidence default to the analysis' own values.
type Request struct {
	AnalysisID int64    `json:"analysis_id" validate:"required,gt=0"`
	Emotion    string   `json:"emotion" validate:"max=50"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	Tracks     []string `json:"tracks"`
}

// Result describes the created playlist.
type Result struct {
	Success      bool   `json:"success"`
	PlaylistID   string `json:"playlist_id"`
	PlaylistName string `json:"playlist_name"`
	PlaylistURL  string `json:"playlist_url"`
	TracksAdded  int    `json:"tracks_added"`
	Message      string `json:"message"`
}

// Service creates playlists from analyses.
type Service struct {
	clients  ClientSource
	analyses AnalysisLookup
	now      func() time.Time
	loc      *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used for playlist descriptions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the timezone of the date in playlist descriptions.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a playlist Service.
func New(clients ClientSource, lookup AnalysisLookup, opts ...Option) *Service {
	s := &Service{
		clients:  clients,
		analyses: lookup,
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create builds a private playlist named after the analysis' emotion and
// fills it with the request's track URIs.
//
// Returns analyses.ErrNotFound if the analysis is outside the user's scope,
// auth.ErrNotConnected if the user has no Spotify token, and ErrNoTracks if
// nothing could be added. An empty playlist is unfollowed before returning.
func (s *Service) Create(ctx context.Context, userID int64, req Request) (*Result, error) {
	req.Emotion = strings.TrimSpace(req.Emotion)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", analyses.ErrValidation, err)
	}

	detail, err := s.analyses.Detail(ctx, userID, req.AnalysisID)
	if err != nil {
		return nil, err
	}

	emotion := req.Emotion
	if emotion == "" {
		emotion = detail.Emotion
	}
	confidence := detail.Confidence
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	tracks := trackURIs(req.Tracks)
	if len(tracks) == 0 {
		return nil, ErrNoTracks
	}

	api, release, err := s.clients.PlaylistClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	label := EmotionLabel(emotion)
	pct := int(confidence * 100)
	name := fmt.Sprintf("Ánima - %s (%d%%)", label, pct)
	description := fmt.Sprintf(
		"Playlist generada por Ánima basada en tu análisis emocional del %s. "+
			"Emoción detectada: %s con %d%% de confianza. "+
			"🎵 Música que refleja cómo te sentís.",
		s.now().In(s.loc).Format("02/01/2006"), label, pct,
	)

	playlistID, playlistURL, err := api.CreatePlaylist(ctx, name, description, false)
	if err != nil {
		return nil, err
	}

	added, err := api.AddTracksToPlaylist(ctx, playlistID, tracks)
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("playlist_id", playlistID).
			Int("tracks_added", added).
			Msg("adding tracks to playlist")
	}
	if added == 0 {
		if uerr := api.UnfollowPlaylist(ctx, playlistID); uerr != nil {
			logging.Ctx(ctx).Warn().Err(uerr).Str("playlist_id", playlistID).Msg("removing empty playlist")
		}
		return nil, ErrNoTracks
	}

	metrics.PlaylistsCreated.Inc()
	logging.Ctx(ctx).Info().
		Int64("analysis_id", detail.ID).
		Str("playlist_id", playlistID).
		Int("tracks_added", added).
		Msg("playlist created")

	return &Result{
		Success:      true,
		PlaylistID:   playlistID,
		PlaylistName: name,
		PlaylistURL:  playlistURL,
		TracksAdded:  added,
		Message:      fmt.Sprintf("Playlist '%s' creada exitosamente con %d canciones", name, added),
	}, nil
}

// EmotionLabel returns the display name of an emotion. Unknown emotions are
// title-cased.
func EmotionLabel(emotion string) string {
	if label, ok := emotionLabels[emotion]; ok {
		return label
	}
	return titleCase(emotion)
}

// titleCase capitalizes every run of letters, so "sUPER_excited" becomes
// "Super_Excited".
func titleCase(s string) string {
	caser := cases.Title(language.Spanish)
	var b strings.Builder
	b.Grow(len(s))
	for s != "" {
		i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
		if i < 0 {
			b.WriteString(caser.String(s))
			break
		}
		b.WriteString(caser.String(s[:i]))
		_, size := utf8.DecodeRuneInString(s[i:])
		b.WriteString(s[i : i+size])
		s = s[i+size:]
	}
	return b.String()
}

// trackURIs keeps the track URIs Spotify can add to a playlist.
func trackURIs(uris []string) []string {
	var out []string
	for _, uri := range uris {
		if _, ok := spotify.TrackIDFromURI(strings.TrimSpace(uri)); ok {
			out = append(out, strings.TrimSpace(uri))
		}
	}
	return out
}

// ============================================================================
// Connector-backed client source
// ============================================================================

// ConnectorSource adapts an auth.Connector to ClientSource.
type ConnectorSource struct {
	Connector *auth.Connector
}

// PlaylistClient returns the user's Spotify client.
func (c ConnectorSource) PlaylistClient(ctx context.Context, userID int64) (PlaylistAPI, func(), error) {
	api, release, err := c.Connector.Client(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return spotify.New(api), release, nil
}
