package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/justestif/anima-analytics/internal/analyses"
	"github.com/justestif/anima-analytics/internal/auth"
	"github.com/justestif/anima-analytics/internal/memstore"
	"github.com/justestif/anima-analytics/internal/playlists"
	"github.com/justestif/anima-analytics/internal/spotify"
)

const testSecret = "web-test-secret"

type fakeAccounts struct {
	states       map[string]int64
	disconnected []int64
	profile      spotify.Profile
	err          error
}

func (f *fakeAccounts) AuthURL(_ context.Context, userID int64) (string, error) {
	f.states["state-1"] = userID
	return "https://accounts.example.com/authorize?state=state-1", nil
}

func (f *fakeAccounts) Complete(_ context.Context, state, _ string) (int64, error) {
	uid, ok := f.states[state]
	if !ok {
		return 0, auth.ErrStateMismatch
	}
	delete(f.states, state)
	return uid, nil
}

func (f *fakeAccounts) Disconnect(_ context.Context, userID int64) error {
	f.disconnected = append(f.disconnected, userID)
	return nil
}

func (f *fakeAccounts) Profile(context.Context, int64) (spotify.Profile, error) {
	return f.profile, f.err
}

func (f *fakeAccounts) Playlists(_ context.Context, _ int64, limit int) (spotify.PlaylistPage, error) {
	if f.err != nil {
		return spotify.PlaylistPage{}, f.err
	}
	return spotify.PlaylistPage{
		Playlists: []spotify.Playlist{{ID: "p1", Name: "Road Trip", TracksTotal: limit}},
		Total:     1,
	}, nil
}

type fakeCreator struct {
	got playlists.Request
	err error
}

func (f *fakeCreator) Create(_ context.Context, _ int64, req playlists.Request) (*playlists.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &playlists.Result{Success: true, PlaylistID: "pl1", TracksAdded: len(req.Tracks)}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	handler  http.Handler
	accounts *fakeAccounts
	creator  *fakeCreator
}

func newTestServer(t *testing.T, withSpotify bool) *testServer {
	t.Helper()

	now := time.Date(2024, 3, 13, 15, 30, 0, 0, time.UTC)
	svc := analyses.New(analyses.FromMemory(memstore.New()),
		analyses.WithClock(func() time.Time { return now }),
		analyses.WithLocation(time.UTC),
	)

	ts := &testServer{}
	deps := Deps{
		Analytics: svc,
		Resolver:  auth.NewJWTResolver(testSecret, ""),
	}
	if withSpotify {
		ts.accounts = &fakeAccounts{states: map[string]int64{}, profile: spotify.Profile{ID: "sp1", DisplayName: "Ana"}}
		ts.creator = &fakeCreator{}
		deps.Spotify = ts.accounts
		deps.Playlists = ts.creator
	}

	srv, err := NewServer(ServerConfig{}, deps)
	require.NoError(t, err)
	ts.handler = srv.Handler()
	return ts
}

func bearer(t *testing.T, userID int64) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

// do performs a request as userID (0 = anonymous) and returns status and body.
func (ts *testServer) do(t *testing.T, method, path string, userID int64, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if userID != 0 {
		req.Header.Set("Authorization", bearer(t, userID))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec.Code, rec.Body.String()
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, false)

	code, body := ts.do(t, http.MethodGet, "/v1/analytics/stats", 0, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.NotEmpty(t, gjson.Get(body, "detail").String())

	req := httptest.NewRequest(http.MethodGet, "/v1/analytics/stats", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStats_Empty(t *testing.T) {
	ts := newTestServer(t, false)

	code, body := ts.do(t, http.MethodGet, "/v1/analytics/stats", 1, "")
	require.Equal(t, http.StatusOK, code, body)

	assert.Equal(t, int64(0), gjson.Get(body, "total_analyses").Int())
	assert.Equal(t, gjson.Null, gjson.Get(body, "most_frequent_emotion").Type)
	assert.Len(t, gjson.Get(body, "hourly_activity").Array(), 24)
	assert.Len(t, gjson.Get(body, "weekly_activity").Array(), 7)
	assert.Len(t, gjson.Get(body, "weekly_emotions").Array(), 8)
	assert.Equal(t, "Mon", gjson.Get(body, "weekly_activity.0.day").String())
	assert.True(t, gjson.Get(body, "positive_negative_balance.positive").Exists())
}

func TestSaveHistoryDetail(t *testing.T) {
	ts := newTestServer(t, false)

	code, body := ts.do(t, http.MethodPost, "/v1/analytics/save-analysis", 1, `{
		"emotion": "happy",
		"confidence": 0.8,
		"emotions_detected": {"happy": 0.8, "sad": 0.2},
		"recommendations": [{"id":"t1","name":"One","uri":"spotify:track:t1","popularity":70}]
	}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.True(t, gjson.Get(body, "success").Bool())
	assert.Equal(t, int64(1), gjson.Get(body, "saved_tracks").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "total_tracks").Int())
	id := gjson.Get(body, "analysis_id").String()
	require.NotEmpty(t, id)

	code, body = ts.do(t, http.MethodGet, "/v1/analytics/history", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), gjson.Get(body, "total").Int())
	assert.Equal(t, id, gjson.Get(body, "analyses.0.id").String())
	assert.Equal(t, gjson.String, gjson.Get(body, "analyses.0.id").Type)

	code, body = ts.do(t, http.MethodGet, "/v1/analytics/history?emotion_filter=sad", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(0), gjson.Get(body, "total").Int())

	code, body = ts.do(t, http.MethodGet, "/v1/analytics/analysis/"+id, 1, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "happy", gjson.Get(body, "emotion").String())
	assert.Equal(t, "t1", gjson.Get(body, "recommendations.0.id").String())
	assert.Equal(t, int64(70), gjson.Get(body, "recommendations.0.popularity").Int())

	// Another user cannot see it.
	code, _ = ts.do(t, http.MethodGet, "/v1/analytics/analysis/"+id, 2, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = ts.do(t, http.MethodGet, "/v1/analytics/stats", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), gjson.Get(body, "total_analyses").Int())
	assert.Equal(t, "happy", gjson.Get(body, "most_frequent_emotion").String())
	assert.Equal(t, int64(1), gjson.Get(body, "streak").Int())
}

func TestSaveAnalysis_Duplicate(t *testing.T) {
	ts := newTestServer(t, false)
	payload := `{"emotion":"sad","confidence":0.4}`

	code, _ := ts.do(t, http.MethodPost, "/v1/analytics/save-analysis", 1, payload)
	require.Equal(t, http.StatusOK, code)

	code, body := ts.do(t, http.MethodPost, "/v1/analytics/save-analysis", 1, payload)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, gjson.Get(body, "duplicate").Bool())
	assert.Equal(t, analyses.MessageDuplicate, gjson.Get(body, "message").String())
}

func TestSaveAnalysis_Invalid(t *testing.T) {
	ts := newTestServer(t, false)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"emotion":`},
		{name: "missing emotion", body: `{"confidence":0.5}`},
		{name: "confidence out of range", body: `{"emotion":"happy","confidence":1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ts.do(t, http.MethodPost, "/v1/analytics/save-analysis", 1, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, gjson.Get(body, "detail").String())
		})
	}
}

func TestAnalysisDetail_BadID(t *testing.T) {
	ts := newTestServer(t, false)

	for _, path := range []string{"/v1/analytics/analysis/abc", "/v1/analytics/analysis/0", "/v1/analytics/analysis/999"} {
		code, _ := ts.do(t, http.MethodGet, path, 1, "")
		assert.Equal(t, http.StatusNotFound, code, path)
	}
}

func TestSessions(t *testing.T) {
	ts := newTestServer(t, false)

	code, body := ts.do(t, http.MethodPost, "/v1/analytics/sessions", 1, "")
	require.Equal(t, http.StatusCreated, code, body)
	id := gjson.Get(body, "id").String()
	assert.Equal(t, gjson.Null, gjson.Get(body, "ended_at").Type)

	code, _ = ts.do(t, http.MethodPost, "/v1/analytics/sessions/"+id+"/end", 2, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = ts.do(t, http.MethodPost, "/v1/analytics/sessions/"+id+"/end", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, gjson.Get(body, "ended").Bool())

	code, body = ts.do(t, http.MethodPost, "/v1/analytics/sessions/"+id+"/end", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.False(t, gjson.Get(body, "ended").Bool())
}

func TestMoods(t *testing.T) {
	ts := newTestServer(t, false)

	code, _ := ts.do(t, http.MethodGet, "/v1/analytics/moods?k=0", 1, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := ts.do(t, http.MethodGet, "/v1/analytics/moods?k=2", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(0), gjson.Get(body, "total").Int())
	assert.True(t, gjson.Get(body, "profiles").IsArray())
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	code, body := ts.do(t, http.MethodGet, "/healthz", 0, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", gjson.Get(body, "status").String())

	srv, err := NewServer(ServerConfig{}, Deps{
		Analytics: analyses.New(analyses.FromMemory(memstore.New())),
		Resolver:  auth.NewJWTResolver(testSecret, ""),
		Health:    fakePinger{err: errors.New("connection refused")},
	})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodGet, "/v1/analytics/stats", 1, "")

	code, body := ts.do(t, http.MethodGet, "/metrics", 0, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "anima_http_request_duration_seconds")
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(ServerConfig{}, Deps{})
	assert.Error(t, err)
}

func TestSpotifyRoutes_Disabled(t *testing.T) {
	ts := newTestServer(t, false)
	code, _ := ts.do(t, http.MethodGet, "/v1/spotify/user-info", 1, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSpotifyConnect(t *testing.T) {
	ts := newTestServer(t, true)

	code, _ := ts.do(t, http.MethodGet, "/v1/auth/spotify", 0, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := ts.do(t, http.MethodGet, "/v1/auth/spotify", 7, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, gjson.Get(body, "auth_url").String(), "state=state-1")

	code, _ = ts.do(t, http.MethodGet, "/v1/auth/spotify/callback?state=state-1", 0, "")
	assert.Equal(t, http.StatusBadRequest, code, "missing code")

	code, _ = ts.do(t, http.MethodGet, "/v1/auth/spotify/callback?error=access_denied&state=state-1", 0, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodGet, "/v1/auth/spotify/callback?state=state-1&code=abc", 0, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, int64(7), gjson.Get(body, "user_id").Int())

	code, _ = ts.do(t, http.MethodGet, "/v1/auth/spotify/callback?state=state-1&code=abc", 0, "")
	assert.Equal(t, http.StatusBadRequest, code, "state is single use")

	code, body = ts.do(t, http.MethodDelete, "/v1/auth/spotify", 7, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.True(t, gjson.Get(body, "success").Bool())
	assert.Equal(t, []int64{7}, ts.accounts.disconnected)
}

func TestSpotifyUserInfoAndPlaylists(t *testing.T) {
	ts := newTestServer(t, true)

	code, body := ts.do(t, http.MethodGet, "/v1/spotify/user-info", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sp1", gjson.Get(body, "user.id").String())
	assert.Equal(t, "Ana", gjson.Get(body, "user.display_name").String())

	code, body = ts.do(t, http.MethodGet, "/v1/spotify/playlists?limit=5", 1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "p1", gjson.Get(body, "playlists.0.id").String())
	assert.Equal(t, int64(5), gjson.Get(body, "playlists.0.tracks_total").Int())

	code, _ = ts.do(t, http.MethodGet, "/v1/spotify/playlists?limit=x", 1, "")
	assert.Equal(t, http.StatusBadRequest, code)

	ts.accounts.err = auth.ErrNotConnected
	code, _ = ts.do(t, http.MethodGet, "/v1/spotify/user-info", 1, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCreatePlaylist(t *testing.T) {
	ts := newTestServer(t, true)

	code, body := ts.do(t, http.MethodPost, "/v1/spotify/create-playlist", 1,
		`{"analysis_id": 3, "emotion": "happy", "confidence": 0.9, "tracks": ["spotify:track:a", "spotify:track:b"]}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "pl1", gjson.Get(body, "playlist_id").String())
	assert.Equal(t, int64(2), gjson.Get(body, "tracks_added").Int())
	assert.Equal(t, int64(3), ts.creator.got.AnalysisID)
	require.NotNil(t, ts.creator.got.Confidence)
	assert.InDelta(t, 0.9, *ts.creator.got.Confidence, 1e-9)

	tests := []struct {
		err  error
		want int
	}{
		{err: playlists.ErrNoTracks, want: http.StatusBadRequest},
		{err: analyses.ErrNotFound, want: http.StatusNotFound},
		{err: auth.ErrNotConnected, want: http.StatusUnauthorized},
		{err: errors.New("spotify exploded"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		ts.creator.err = tt.err
		code, body := ts.do(t, http.MethodPost, "/v1/spotify/create-playlist", 1, `{"analysis_id": 3}`)
		assert.Equal(t, tt.want, code, tt.err.Error())
		if tt.want == http.StatusInternalServerError {
			assert.Equal(t, "internal server error", gjson.Get(body, "detail").String())
		}
	}
}
