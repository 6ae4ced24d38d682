package analyses

import (
	"context"
	"errors"
	"fmt"

	"github.com/justestif/anima-analytics/internal/db"
)

// SessionIDs returns the IDs of every session the user owns. Every read goes
// through this set; an analysis outside it does not exist for the caller.
func (s *Service) SessionIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.repos.Sessions.IDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading sessions for user %d: %w", userID, err)
	}
	return ids, nil
}

// StartSession opens a new session for the user.
func (s *Service) StartSession(ctx context.Context, userID int64) (*db.Session, error) {
	session := &db.Session{
		UserID:    userID,
		StartedAt: s.now(),
	}
	if err := s.repos.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	return session, nil
}

// EndSession closes one of the user's sessions. Returns false if it was
// already closed and ErrNotFound if the user owns no such session.
func (s *Service) EndSession(ctx context.Context, userID, sessionID int64) (bool, error) {
	ended, err := s.repos.Sessions.End(ctx, sessionID, userID, s.now())
	if errors.Is(err, db.ErrNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("ending session %d: %w", sessionID, err)
	}
	return ended, nil
}

// EnsureEmotions makes sure the canonical emotion labels exist.
func (s *Service) EnsureEmotions(ctx context.Context) error {
	if err := s.repos.Emotions.Ensure(ctx, CanonicalEmotions); err != nil {
		return fmt.Errorf("seeding emotions: %w", err)
	}
	return nil
}

// activeSession returns the user's most recently started open session,
// opening one if there is none.
func (s *Service) activeSession(ctx context.Context, userID int64) (*db.Session, error) {
	session, err := s.repos.Sessions.LatestOpen(ctx, userID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("finding open session: %w", err)
	}
	return s.StartSession(ctx, userID)
}
