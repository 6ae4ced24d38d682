package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/justestif/anima-analytics/internal/analyses"
	"github.com/justestif/anima-analytics/internal/db"
	"github.com/justestif/anima-analytics/internal/moods"
	"github.com/justestif/anima-analytics/internal/playlists"
	"github.com/justestif/anima-analytics/internal/stats"
)

// Analytics is the analytics service used by the handlers.
type Analytics interface {
	Stats(ctx context.Context, userID int64) (stats.Stats, error)
	History(ctx context.Context, userID int64, emotionFilter string) (*analyses.HistoryResult, error)
	Detail(ctx context.Context, userID, analysisID int64) (*analyses.Detail, error)
	Save(ctx context.Context, userID int64, req analyses.SaveRequest) (*analyses.SaveResult, error)
	StartSession(ctx context.Context, userID int64) (*db.Session, error)
	EndSession(ctx context.Context, userID, sessionID int64) (bool, error)
	Moods(ctx context.Context, userID int64, k int) ([]moods.Profile, error)
}

// PlaylistCreator exports analyses to Spotify playlists.
type PlaylistCreator interface {
	Create(ctx context.Context, userID int64, req playlists.Request) (*playlists.Result, error)
}

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	analytics Analytics
	spotify   SpotifyAccounts
	playlists PlaylistCreator
	health    Pinger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		analytics: deps.Analytics,
		spotify:   deps.Spotify,
		playlists: deps.Playlists,
		health:    deps.Health,
	}
}

// userID returns the authenticated caller. authenticate guarantees it is set.
func userID(r *http.Request) int64 {
	id, _ := identityFrom(r.Context())
	return id.UserID
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// Health reports liveness and storage reachability (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats returns the caller's aggregate statistics (GET /v1/analytics/stats).
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	result, err := h.analytics.Stats(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// AnalysisDetail returns one analysis (GET /v1/analytics/analysis/{id}).
func (h *Handlers) AnalysisDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, analyses.ErrNotFound.Error())
		return
	}

	detail, err := h.analytics.Detail(r.Context(), userID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// History lists the caller's analyses (GET /v1/analytics/history).
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	result, err := h.analytics.History(r.Context(), userID(r), r.URL.Query().Get("emotion_filter"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SaveAnalysis records an analysis (POST /v1/analytics/save-analysis).
func (h *Handlers) SaveAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analyses.SaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.analytics.Save(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type sessionResponse struct {
	ID        int64      `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

// StartSession opens a session for the caller (POST /v1/analytics/sessions).
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.analytics.StartSession(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:        session.ID,
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
	})
}

// EndSession closes one of the caller's sessions
// (POST /v1/analytics/sessions/{id}/end).
func (h *Handlers) EndSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, analyses.ErrNotFound.Error())
		return
	}

	ended, err := h.analytics.EndSession(r.Context(), userID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "ended": ended})
}

// Moods returns the caller's mood profiles (GET /v1/analytics/moods?k=).
func (h *Handlers) Moods(w http.ResponseWriter, r *http.Request) {
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 10 {
			writeError(w, http.StatusBadRequest, "k must be between 1 and 10")
			return
		}
		k = n
	}

	profiles, err := h.analytics.Moods(r.Context(), userID(r), k)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []moods.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles, "total": len(profiles)})
}
