package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/justestif/anima-analytics/internal/analyses"
	"github.com/justestif/anima-analytics/internal/auth"
	"github.com/justestif/anima-analytics/internal/logging"
	"github.com/justestif/anima-analytics/internal/playlists"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// errorResponse is the body of every error reply.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("encoding response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// decodeJSON reads a JSON body into v. Errors wrap analyses.ErrValidation.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", analyses.ErrValidation, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", analyses.ErrValidation)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", analyses.ErrValidation, err)
	}
	return nil
}

// writeServiceError maps service errors to HTTP statuses. Unexpected errors
// are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrNotConnected):
		writeError(w, http.StatusUnauthorized, "spotify account not connected")
	case errors.Is(err, analyses.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, analyses.ErrValidation),
		errors.Is(err, playlists.ErrNoTracks),
		errors.Is(err, auth.ErrStateMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
