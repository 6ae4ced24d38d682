package analyses

import (
	"context"
	"fmt"

	"github.com/justestif/anima-analytics/internal/db"
	"github.com/justestif/anima-analytics/internal/moods"
	"github.com/justestif/anima-analytics/internal/stats"
)

// Stats computes the dashboard statistics over all of the user's analyses.
// A user without sessions or analyses gets the canonical empty statistics.
func (s *Service) Stats(ctx context.Context, userID int64) (stats.Stats, error) {
	now := s.now()

	rows, err := s.scopedAnalyses(ctx, userID, db.AnalysisFilter{})
	if err != nil {
		return stats.Stats{}, err
	}
	if len(rows) == 0 {
		return stats.Empty(now, s.loc), nil
	}

	events := make([]stats.Event, len(rows))
	for i, a := range rows {
		events[i] = stats.Event{
			Emotion:    a.EmotionName,
			Confidence: a.Confidence,
			OccurredAt: a.OccurredAt,
		}
	}
	return stats.Compute(events, now, s.loc), nil
}

// Moods clusters the user's detected-emotion vectors into k mood profiles.
func (s *Service) Moods(ctx context.Context, userID int64, k int) ([]moods.Profile, error) {
	rows, err := s.scopedAnalyses(ctx, userID, db.AnalysisFilter{})
	if err != nil {
		return nil, err
	}

	observations := make([]moods.Observation, len(rows))
	for i, a := range rows {
		observations[i] = moods.Observation{
			AnalysisID: a.ID,
			OccurredAt: a.OccurredAt,
			Emotions:   a.EmotionsDetected,
		}
	}

	cfg := moods.DefaultConfig()
	if k > 0 {
		cfg.NumProfiles = k
	}
	profiles, err := moods.Detect(observations, CanonicalEmotions, cfg)
	if err != nil {
		return nil, fmt.Errorf("detecting mood profiles: %w", err)
	}
	return profiles, nil
}

// scopedAnalyses lists the user's analyses, newest first.
func (s *Service) scopedAnalyses(ctx context.Context, userID int64, filter db.AnalysisFilter) ([]db.AnalysisWithEmotion, error) {
	ids, err := s.SessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.repos.Analyses.ListForSessions(ctx, ids, filter)
	if err != nil {
		return nil, fmt.Errorf("loading analyses: %w", err)
	}
	return rows, nil
}
