// Package memstore is an in-memory implementation of the analytics
// repositories, for development and testing.
//
// It mirrors the behavior of the PostgreSQL repositories in internal/db,
// including unique content identity, idempotent links and transactional
// content writes.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/justestif/anima-analytics/internal/db"
)

// Store holds every table in memory.
type Store struct {
	mu sync.RWMutex

	sessions []db.Session
	emotions []db.Emotion
	analyses []db.Analysis
	items    []db.ContentItem
	links    []db.AnalysisContent

	// FailContentCreate, when set, is called before a content item is
	// created. A non-nil error aborts that item's transaction.
	FailContentCreate func(item db.ContentItem) error

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{now: time.Now}
}

// Sessions returns the session repository.
func (s *Store) Sessions() *Sessions { return &Sessions{s: s} }

// Emotions returns the emotion repository.
func (s *Store) Emotions() *Emotions { return &Emotions{s: s} }

// Analyses returns the analysis repository.
func (s *Store) Analyses() *Analyses { return &Analyses{s: s} }

// Content returns the content repository.
func (s *Store) Content() *Content { return &Content{s: s} }

// ContentItems returns a copy of every stored content item.
func (s *Store) ContentItems() []db.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Links returns a copy of every analysis/content link.
func (s *Store) Links() []db.AnalysisContent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.links)
}

// ============================================================================
// Sessions
// ============================================================================

// Sessions implements the session repository.
type Sessions struct{ s *Store }

// Create inserts a new session and sets its ID.
func (r *Sessions) Create(_ context.Context, session *db.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session.ID = int64(len(r.s.sessions) + 1)
	r.s.sessions = append(r.s.sessions, *session)
	return nil
}

// Get retrieves a session by ID.
func (r *Sessions) Get(_ context.Context, id int64) (*db.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, session := range r.s.sessions {
		if session.ID == id {
			return &session, nil
		}
	}
	return nil, db.ErrNotFound
}

// LatestOpen returns the most recently started open session of a user.
func (r *Sessions) LatestOpen(_ context.Context, userID int64) (*db.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var latest *db.Session
	for i := range r.s.sessions {
		session := r.s.sessions[i]
		if session.UserID != userID || session.EndedAt != nil {
			continue
		}
		if latest == nil || !session.StartedAt.Before(latest.StartedAt) {
			latest = &session
		}
	}
	if latest == nil {
		return nil, db.ErrNotFound
	}
	return latest, nil
}

// IDsForUser returns the IDs of every session owned by a user.
func (r *Sessions) IDsForUser(_ context.Context, userID int64) ([]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ids []int64
	for _, session := range r.s.sessions {
		if session.UserID == userID {
			ids = append(ids, session.ID)
		}
	}
	return ids, nil
}

// End closes an open session owned by userID.
func (r *Sessions) End(_ context.Context, id, userID int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.sessions {
		session := &r.s.sessions[i]
		if session.ID != id {
			continue
		}
		if session.UserID != userID {
			return false, db.ErrNotFound
		}
		if session.EndedAt != nil {
			return false, nil
		}
		session.EndedAt = &at
		return true, nil
	}
	return false, db.ErrNotFound
}

// ============================================================================
// Emotions
// ============================================================================

// Emotions implements the emotion repository.
type Emotions struct{ s *Store }

// FindOrCreate returns the emotion with the given name, creating it if needed.
func (r *Emotions) FindOrCreate(_ context.Context, name string) (*db.Emotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := r.s.findOrCreateEmotion(name)
	return &e, nil
}

// Ensure inserts any of the given names that are missing.
func (r *Emotions) Ensure(_ context.Context, names []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, name := range names {
		r.s.findOrCreateEmotion(name)
	}
	return nil
}

// List returns every known emotion name in insertion order.
func (r *Emotions) List() []string {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	names := make([]string, len(r.s.emotions))
	for i, e := range r.s.emotions {
		names[i] = e.Name
	}
	return names
}

// findOrCreateEmotion requires s.mu to be held for writing.
func (s *Store) findOrCreateEmotion(name string) db.Emotion {
	for _, e := range s.emotions {
		if e.Name == name {
			return e
		}
	}
	e := db.Emotion{
		ID:        int64(len(s.emotions) + 1),
		Name:      name,
		CreatedAt: s.now(),
	}
	s.emotions = append(s.emotions, e)
	return e
}

func (s *Store) emotionName(id int64) string {
	for _, e := range s.emotions {
		if e.ID == id {
			return e.Name
		}
	}
	return ""
}

// ============================================================================
// Analyses
// ============================================================================

// Analyses implements the analysis repository.
type Analyses struct{ s *Store }

// Create inserts a new analysis and sets its ID.
func (r *Analyses) Create(_ context.Context, a *db.Analysis) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a.ID = int64(len(r.s.analyses) + 1)
	stored := *a
	if stored.EmotionsDetected == nil {
		stored.EmotionsDetected = map[string]float64{}
	}
	r.s.analyses = append(r.s.analyses, stored)
	return nil
}

// ExistsSince reports whether an analysis for the session and emotion was
// recorded at or after since.
func (r *Analyses) ExistsSince(_ context.Context, sessionID, emotionID int64, since time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.analyses {
		if a.SessionID == sessionID && a.EmotionID == emotionID && !a.OccurredAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// ListForSessions returns the analyses recorded in any of the given
// sessions, newest first.
func (r *Analyses) ListForSessions(_ context.Context, sessionIDs []int64, filter db.AnalysisFilter) ([]db.AnalysisWithEmotion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []db.AnalysisWithEmotion
	for _, a := range r.s.analyses {
		if !slices.Contains(sessionIDs, a.SessionID) {
			continue
		}
		name := r.s.emotionName(a.EmotionID)
		if filter.Emotion != "" && name != filter.Emotion {
			continue
		}
		result = append(result, db.AnalysisWithEmotion{Analysis: a, EmotionName: name})
	}

	slices.SortStableFunc(result, func(a, b db.AnalysisWithEmotion) int {
		if c := b.OccurredAt.Compare(a.OccurredAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	return result, nil
}

// GetInSessions retrieves an analysis by ID if it belongs to one of the
// given sessions.
func (r *Analyses) GetInSessions(_ context.Context, id int64, sessionIDs []int64) (*db.AnalysisWithEmotion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.analyses {
		if a.ID == id && slices.Contains(sessionIDs, a.SessionID) {
			return &db.AnalysisWithEmotion{Analysis: a, EmotionName: r.s.emotionName(a.EmotionID)}, nil
		}
	}
	return nil, db.ErrNotFound
}

// ============================================================================
// Content
// ============================================================================

// Content implements the content repository.
type Content struct{ s *Store }

// ForAnalysis retrieves the content items linked to an analysis in position
// order.
func (r *Content) ForAnalysis(_ context.Context, analysisID int64) ([]db.ContentItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var links []db.AnalysisContent
	for _, l := range r.s.links {
		if l.AnalysisID == analysisID {
			links = append(links, l)
		}
	}
	slices.SortStableFunc(links, func(a, b db.AnalysisContent) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return int(a.ContentID - b.ContentID)
	})

	var items []db.ContentItem
	for _, l := range links {
		for _, item := range r.s.items {
			if item.ID == l.ContentID {
				items = append(items, item)
				break
			}
		}
	}
	return items, nil
}

// WithTx runs fn against staged copies of the content tables. The staged
// state replaces the store's only if fn returns nil.
func (r *Content) WithTx(ctx context.Context, fn func(db.ContentWriter) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx := &contentTx{
		s:     r.s,
		items: slices.Clone(r.s.items),
		links: slices.Clone(r.s.links),
	}
	if err := fn(tx); err != nil {
		return err
	}
	r.s.items = tx.items
	r.s.links = tx.links
	return nil
}

// contentTx holds staged content writes. Store.mu is held by WithTx.
type contentTx struct {
	s     *Store
	items []db.ContentItem
	links []db.AnalysisContent
}

func (t *contentTx) FindByExternalID(_ context.Context, externalID string) (*db.ContentItem, error) {
	for _, item := range t.items {
		if item.ExternalID != nil && *item.ExternalID == externalID {
			return &item, nil
		}
	}
	return nil, db.ErrNotFound
}

func (t *contentTx) FindByExternalURL(_ context.Context, url string) (*db.ContentItem, error) {
	for _, item := range t.items {
		if item.ExternalURL != nil && *item.ExternalURL == url {
			return &item, nil
		}
	}
	return nil, db.ErrNotFound
}

func (t *contentTx) Create(_ context.Context, item *db.ContentItem) error {
	if t.s.FailContentCreate != nil {
		if err := t.s.FailContentCreate(*item); err != nil {
			return err
		}
	}
	if item.ExternalID != nil {
		if _, err := t.FindByExternalID(context.Background(), *item.ExternalID); err == nil {
			return errDuplicate("external_id", *item.ExternalID)
		}
	}
	if item.ExternalID == nil && item.ExternalURL != nil {
		for _, existing := range t.items {
			if existing.ExternalID == nil && existing.ExternalURL != nil && *existing.ExternalURL == *item.ExternalURL {
				return errDuplicate("external_url", *item.ExternalURL)
			}
		}
	}

	item.ID = int64(len(t.items) + 1)
	item.CreatedAt = t.s.now()
	t.items = append(t.items, *item)
	return nil
}

func (t *contentTx) Link(_ context.Context, link db.AnalysisContent) (bool, error) {
	for _, l := range t.links {
		if l.AnalysisID == link.AnalysisID && l.ContentID == link.ContentID {
			return false, nil
		}
	}
	t.links = append(t.links, link)
	return true, nil
}
