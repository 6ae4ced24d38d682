package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/justestif/anima-analytics/internal/content"
	"github.com/justestif/anima-analytics/internal/db"
	"github.com/justestif/anima-analytics/internal/logging"
	"github.com/justestif/anima-analytics/internal/metrics"
)

// Result messages.
const (
	MessageSaved     = "analysis saved"
	MessageDuplicate = "analysis already saved recently"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SaveRequest is one analysis submission.
type SaveRequest struct {
	Emotion          string             `json:"emotion" validate:"required,max=50"`
	Confidence       float64            `json:"confidence" validate:"gte=0,lte=1"`
	EmotionsDetected map[string]float64 `json:"emotions_detected"`
	Recommendations  []json.RawMessage  `json:"recommendations"`
}

// ItemError reports a recommendation that could not be stored or linked.
type ItemError struct {
	Track string `json:"track"`
	Error string `json:"error"`
}

// SaveResult is the outcome of Save.
type SaveResult struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	Duplicate   bool        `json:"duplicate,omitempty"`
	AnalysisID  int64       `json:"analysis_id,omitempty"`
	SavedTracks int         `json:"saved_tracks"`
	TotalTracks int         `json:"total_tracks"`
	Errors      []ItemError `json:"errors"`
}

// Validate normalizes and checks a submission. Errors wrap ErrValidation.
func (r *SaveRequest) Validate() error {
	r.Emotion = strings.TrimSpace(r.Emotion)
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrValidation, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Save records an analysis in the user's active session and links its
// recommendations to content items.
//
// A submission matching an analysis of the same session and emotion within
// the dedup window is reported as a duplicate and not stored. Each
// recommendation is stored in its own transaction; failures are collected in
// the result and never fail the save once the analysis is persisted.
func (s *Service) Save(ctx context.Context, userID int64, req SaveRequest) (*SaveResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	session, err := s.activeSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	emotion, err := s.repos.Emotions.FindOrCreate(ctx, req.Emotion)
	if err != nil {
		return nil, fmt.Errorf("resolving emotion: %w", err)
	}

	now := s.now()
	dup, err := s.repos.Analyses.ExistsSince(ctx, session.ID, emotion.ID, now.Add(-s.dedupWindow))
	if err != nil {
		return nil, fmt.Errorf("checking for duplicates: %w", err)
	}
	if dup {
		metrics.AnalysesDuplicate.Inc()
		return &SaveResult{
			Success:     true,
			Message:     MessageDuplicate,
			Duplicate:   true,
			TotalTracks: len(req.Recommendations),
			Errors:      []ItemError{},
		}, nil
	}

	analysis := &db.Analysis{
		SessionID:        session.ID,
		EmotionID:        emotion.ID,
		OccurredAt:       now,
		Confidence:       req.Confidence,
		EmotionsDetected: nonNilScores(req.EmotionsDetected),
		Recommendations:  req.Recommendations,
	}
	if err := s.repos.Analyses.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("saving analysis: %w", err)
	}
	metrics.AnalysesSaved.Inc()

	result := &SaveResult{
		Success:     true,
		Message:     MessageSaved,
		AnalysisID:  analysis.ID,
		TotalTracks: len(req.Recommendations),
		Errors:      []ItemError{},
	}
	for i, raw := range req.Recommendations {
		label, err := s.linkRecommendation(ctx, analysis.ID, i, raw)
		if err != nil {
			metrics.ContentLinks.WithLabelValues(metrics.OutcomeFailed).Inc()
			logging.Ctx(ctx).Warn().
				Err(err).
				Int64("analysis_id", analysis.ID).
				Int("position", i).
				Str("track", label).
				Msg("storing recommendation")
			result.Errors = append(result.Errors, ItemError{Track: label, Error: err.Error()})
			continue
		}
		result.SavedTracks++
	}

	logging.Ctx(ctx).Info().
		Int64("analysis_id", analysis.ID).
		Int("saved_tracks", result.SavedTracks).
		Int("total_tracks", result.TotalTracks).
		Msg("analysis saved")
	return result, nil
}

// linkRecommendation stores one payload and links it to the analysis in a
// single transaction. Returns the track label for error reporting.
func (s *Service) linkRecommendation(ctx context.Context, analysisID int64, position int, raw json.RawMessage) (string, error) {
	track, err := content.Parse(raw)
	if err != nil {
		return "", err
	}

	err = s.repos.Content.WithTx(ctx, func(w db.ContentWriter) error {
		item, err := content.Resolve(ctx, w, track)
		if err != nil {
			return err
		}
		linked, err := w.Link(ctx, db.AnalysisContent{
			AnalysisID: analysisID,
			ContentID:  item.ID,
			Position:   position,
		})
		if err != nil {
			return err
		}
		if linked {
			metrics.ContentLinks.WithLabelValues(metrics.OutcomeLinked).Inc()
		} else {
			metrics.ContentLinks.WithLabelValues(metrics.OutcomeExisting).Inc()
		}
		return nil
	})
	return track.Label(), err
}
