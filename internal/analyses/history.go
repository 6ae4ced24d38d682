package analyses

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/justestif/anima-analytics/internal/content"
	"github.com/justestif/anima-analytics/internal/db"
	"github.com/justestif/anima-analytics/internal/logging"
)

// FilterAll disables the emotion filter of History.
const FilterAll = "all"

// HistoryItem is one row of the analysis history.
type HistoryItem struct {
	ID               string             `json:"id"`
	Emotion          string             `json:"emotion"`
	Confidence       float64            `json:"confidence"`
	Date             time.Time          `json:"date"`
	EmotionsDetected map[string]float64 `json:"emotions_detected"`
}

// HistoryResult is the analysis history of a user.
type HistoryResult struct {
	Analyses []HistoryItem `json:"analyses"`
	Total    int           `json:"total"`
}

// Detail is a single analysis with its resolved recommendations.
type Detail struct {
	ID               int64              `json:"id"`
	Emotion          string             `json:"emotion"`
	Confidence       float64            `json:"confidence"`
	Date             time.Time          `json:"date"`
	EmotionsDetected map[string]float64 `json:"emotions_detected"`
	SessionID        int64              `json:"session_id"`
	Recommendations  []json.RawMessage  `json:"recommendations"`
}

// History lists the user's analyses, newest first. An empty filter or
// FilterAll returns every emotion.
func (s *Service) History(ctx context.Context, userID int64, emotionFilter string) (*HistoryResult, error) {
	filter := db.AnalysisFilter{}
	if emotionFilter != "" && emotionFilter != FilterAll {
		filter.Emotion = emotionFilter
	}

	rows, err := s.scopedAnalyses(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, len(rows))
	for i, a := range rows {
		items[i] = HistoryItem{
			ID:               strconv.FormatInt(a.ID, 10),
			Emotion:          a.EmotionName,
			Confidence:       a.Confidence,
			Date:             a.OccurredAt,
			EmotionsDetected: nonNilScores(a.EmotionsDetected),
		}
	}
	return &HistoryResult{Analyses: items, Total: len(items)}, nil
}

// Detail returns one of the user's analyses. Returns ErrNotFound if the
// analysis does not exist or belongs to another user.
//
// Recommendations come from the linked content items. Analyses without links
// fall back to the payloads embedded when they were saved.
func (s *Service) Detail(ctx context.Context, userID, analysisID int64) (*Detail, error) {
	ids, err := s.SessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}

	a, err := s.repos.Analyses.GetInSessions(ctx, analysisID, ids)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	recs := s.linkedRecommendations(ctx, a.ID)
	if len(recs) == 0 {
		recs = a.Recommendations
	}
	if recs == nil {
		recs = []json.RawMessage{}
	}

	return &Detail{
		ID:               a.ID,
		Emotion:          a.EmotionName,
		Confidence:       a.Confidence,
		Date:             a.OccurredAt,
		EmotionsDetected: nonNilScores(a.EmotionsDetected),
		SessionID:        a.SessionID,
		Recommendations:  recs,
	}, nil
}

// linkedRecommendations renders the content items linked to an analysis.
// Load failures are logged and yield nil so the caller falls back.
func (s *Service) linkedRecommendations(ctx context.Context, analysisID int64) []json.RawMessage {
	items, err := s.repos.Content.ForAnalysis(ctx, analysisID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("analysis_id", analysisID).Msg("loading linked content")
		return nil
	}

	recs := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		rec, err := content.Recommendation(item)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int64("content_id", item.ID).Msg("rendering recommendation")
			return nil
		}
		recs = append(recs, rec)
	}
	return recs
}

func nonNilScores(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
