package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EmotionRepository handles emotion vocabulary operations.
type EmotionRepository struct {
	pool *pgxpool.Pool
}

// FindOrCreate returns the emotion with the given name, creating it if needed.
func (r *EmotionRepository) FindOrCreate(ctx context.Context, name string) (*Emotion, error) {
	// DO UPDATE instead of DO NOTHING so RETURNING yields the existing row.
	query := `
		INSERT INTO emotions (name, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at
	`
	var emotion Emotion
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&emotion.ID,
		&emotion.Name,
		&emotion.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting emotion %q: %w", name, err)
	}
	return &emotion, nil
}

// Ensure inserts any of the given names that are missing.
func (r *EmotionRepository) Ensure(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	query := `
		INSERT INTO emotions (name, created_at)
		SELECT unnest($1::text[]), NOW()
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, names); err != nil {
		return fmt.Errorf("ensuring emotions: %w", err)
	}
	return nil
}
