package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnalysisRepository handles analysis database operations.
type AnalysisRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new analysis and sets its ID.
func (r *AnalysisRepository) Create(ctx context.Context, a *Analysis) error {
	detected, err := json.Marshal(nonNilScores(a.EmotionsDetected))
	if err != nil {
		return fmt.Errorf("encoding emotions detected: %w", err)
	}
	recs := a.Recommendations
	if recs == nil {
		recs = []json.RawMessage{}
	}
	recommendations, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encoding recommendations: %w", err)
	}

	query := `
		INSERT INTO analyses (session_id, emotion_id, occurred_at, confidence, emotions_detected, recommendations)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err = r.pool.QueryRow(ctx, query,
		a.SessionID,
		a.EmotionID,
		a.OccurredAt,
		a.Confidence,
		detected,
		recommendations,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("inserting analysis: %w", err)
	}
	return nil
}

// ExistsSince reports whether an analysis for the session and emotion was
// recorded at or after since.
func (r *AnalysisRepository) ExistsSince(ctx context.Context, sessionID, emotionID int64, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM analyses
			WHERE session_id = $1 AND emotion_id = $2 AND occurred_at >= $3
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, sessionID, emotionID, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking recent analysis: %w", err)
	}
	return exists, nil
}

const analysisColumns = `
	a.id, a.session_id, a.emotion_id, a.occurred_at, a.confidence,
	a.emotions_detected, a.recommendations, e.name
`

// ListForSessions returns the analyses recorded in any of the given
// sessions, newest first.
func (r *AnalysisRepository) ListForSessions(ctx context.Context, sessionIDs []int64, filter AnalysisFilter) ([]AnalysisWithEmotion, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + analysisColumns + `
		FROM analyses a
		JOIN emotions e ON e.id = a.emotion_id
		WHERE a.session_id = ANY($1)`)
	args := []any{sessionIDs}
	if filter.Emotion != "" {
		args = append(args, filter.Emotion)
		fmt.Fprintf(&sb, " AND e.name = $%d", len(args))
	}
	sb.WriteString(" ORDER BY a.occurred_at DESC, a.id DESC")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var result []AnalysisWithEmotion
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// GetInSessions retrieves an analysis by ID, but only if it belongs to one
// of the given sessions. Returns ErrNotFound otherwise.
func (r *AnalysisRepository) GetInSessions(ctx context.Context, id int64, sessionIDs []int64) (*AnalysisWithEmotion, error) {
	if len(sessionIDs) == 0 {
		return nil, ErrNotFound
	}

	query := `SELECT ` + analysisColumns + `
		FROM analyses a
		JOIN emotions e ON e.id = a.emotion_id
		WHERE a.id = $1 AND a.session_id = ANY($2)
	`
	a, err := scanAnalysis(r.pool.QueryRow(ctx, query, id, sessionIDs))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// scanAnalysis scans one row selected with analysisColumns.
func scanAnalysis(row pgx.Row) (*AnalysisWithEmotion, error) {
	var (
		a        AnalysisWithEmotion
		detected []byte
		recs     []byte
	)
	err := row.Scan(
		&a.ID,
		&a.SessionID,
		&a.EmotionID,
		&a.OccurredAt,
		&a.Confidence,
		&detected,
		&recs,
		&a.EmotionName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning analysis: %w", err)
	}

	a.EmotionsDetected = map[string]float64{}
	if len(detected) > 0 {
		if err := json.Unmarshal(detected, &a.EmotionsDetected); err != nil {
			return nil, fmt.Errorf("decoding emotions detected for analysis %d: %w", a.ID, err)
		}
	}
	if len(recs) > 0 {
		if err := json.Unmarshal(recs, &a.Recommendations); err != nil {
			return nil, fmt.Errorf("decoding recommendations for analysis %d: %w", a.ID, err)
		}
	}
	return &a, nil
}

func nonNilScores(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
