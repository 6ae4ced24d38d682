package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles session database operations.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new session and sets its ID.
func (r *SessionRepository) Create(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (user_id, started_at, ended_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		session.UserID,
		session.StartedAt,
		session.EndedAt,
	).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(ctx context.Context, id int64) (*Session, error) {
	query := `
		SELECT id, user_id, started_at, ended_at
		FROM sessions
		WHERE id = $1
	`
	var session Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.StartedAt,
		&session.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &session, nil
}

// LatestOpen returns the most recently started session of a user that has
// not ended. Returns ErrNotFound if the user has no open session.
func (r *SessionRepository) LatestOpen(ctx context.Context, userID int64) (*Session, error) {
	query := `
		SELECT id, user_id, started_at, ended_at
		FROM sessions
		WHERE user_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`
	var session Session
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&session.ID,
		&session.UserID,
		&session.StartedAt,
		&session.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying open session: %w", err)
	}
	return &session, nil
}

// IDsForUser returns the IDs of every session owned by a user.
func (r *SessionRepository) IDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT id FROM sessions WHERE user_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user sessions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning session ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// End closes an open session owned by userID.
// Returns false if the session was already closed, ErrNotFound if the user
// owns no such session.
func (r *SessionRepository) End(ctx context.Context, id, userID int64, at time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET ended_at = $3
		WHERE id = $1 AND user_id = $2 AND ended_at IS NULL
	`
	result, err := r.pool.Exec(ctx, query, id, userID, at)
	if err != nil {
		return false, fmt.Errorf("ending session: %w", err)
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	session, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if session.UserID != userID {
		return false, ErrNotFound
	}
	return false, nil
}
