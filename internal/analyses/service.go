// Package analyses provides the analytics services: session scoping,
// statistics, history and detail reads, and analysis ingestion.
package analyses

import (
	"context"
	"errors"
	"time"

	"github.com/justestif/anima-analytics/internal/db"
	"github.com/justestif/anima-analytics/internal/memstore"
)

// DefaultDedupWindow is how far back Save looks for an identical submission.
const DefaultDedupWindow = 30 * time.Second

// CanonicalEmotions are the labels the detector produces. Every deployment
// has them in its vocabulary.
var CanonicalEmotions = []string{"happy", "sad", "angry", "relaxed", "energetic"}

var (
	// ErrNotFound is returned when an analysis or session does not exist or
	// is outside the caller's scope.
	ErrNotFound = errors.New("analysis not found")
	// ErrValidation is wrapped by request validation failures.
	ErrValidation = errors.New("invalid request")
)

// SessionStore abstracts session persistence.
type SessionStore interface {
	IDsForUser(ctx context.Context, userID int64) ([]int64, error)
	LatestOpen(ctx context.Context, userID int64) (*db.Session, error)
	Create(ctx context.Context, session *db.Session) error
	End(ctx context.Context, id, userID int64, at time.Time) (bool, error)
}

// EmotionStore abstracts the emotion vocabulary.
type EmotionStore interface {
	FindOrCreate(ctx context.Context, name string) (*db.Emotion, error)
	Ensure(ctx context.Context, names []string) error
}

// AnalysisStore abstracts analysis persistence.
type AnalysisStore interface {
	Create(ctx context.Context, a *db.Analysis) error
	ExistsSince(ctx context.Context, sessionID, emotionID int64, since time.Time) (bool, error)
	ListForSessions(ctx context.Context, sessionIDs []int64, filter db.AnalysisFilter) ([]db.AnalysisWithEmotion, error)
	GetInSessions(ctx context.Context, id int64, sessionIDs []int64) (*db.AnalysisWithEmotion, error)
}

// ContentStore abstracts content item persistence.
type ContentStore interface {
	ForAnalysis(ctx context.Context, analysisID int64) ([]db.ContentItem, error)
	WithTx(ctx context.Context, fn func(db.ContentWriter) error) error
}

// Repositories bundles the stores the service needs.
type Repositories struct {
	Sessions SessionStore
	Emotions EmotionStore
	Analyses AnalysisStore
	Content  ContentStore
}

// FromDB wires the PostgreSQL repositories.
func FromDB(database *db.DB) Repositories {
	return Repositories{
		Sessions: database.Sessions(),
		Emotions: database.Emotions(),
		Analyses: database.Analyses(),
		Content:  database.Content(),
	}
}

// FromMemory wires an in-memory store.
func FromMemory(store *memstore.Store) Repositories {
	return Repositories{
		Sessions: store.Sessions(),
		Emotions: store.Emotions(),
		Analyses: store.Analyses(),
		Content:  store.Content(),
	}
}

// Service implements the analytics operations for one user at a time.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	repos       Repositories
	now         func() time.Time
	loc         *time.Location
	dedupWindow time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the timezone used for calendar bucketing.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithDedupWindow sets the duplicate submission window.
func WithDedupWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.dedupWindow = d
		}
	}
}

// New creates a new analytics service.
func New(repos Repositories, opts ...Option) *Service {
	s := &Service{
		repos:       repos,
		now:         time.Now,
		loc:         time.Local,
		dedupWindow: DefaultDedupWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the timezone used for calendar bucketing.
func (s *Service) Location() *time.Location {
	return s.loc
}
