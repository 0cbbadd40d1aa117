package port

import (
	"context"
	"time"

	"github.com/bnema/captioner/internal/domain"
)

type SessionStore interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	UpdateSession(ctx context.Context, s *domain.Session) error
	ListActiveSessions(ctx context.Context) ([]*domain.Session, error)
	ListSessionsByOwner(ctx context.Context, ownerID string) ([]*domain.Session, error)
	ListAllSessions(ctx context.Context) ([]*domain.Session, error)
	// ListIdleSessions returns non-terminal sessions not updated since before.
	ListIdleSessions(ctx context.Context, before time.Time) ([]*domain.Session, error)
	// ListFinishedSessions returns terminal sessions last updated before the cutoff.
	ListFinishedSessions(ctx context.Context, before time.Time) ([]*domain.Session, error)
}

type SegmentStore interface {
	// ReplaceSegments drops every segment of the session and inserts the given ones.
	ReplaceSegments(ctx context.Context, sessionID string, segments []*domain.Segment) error
	GetSegment(ctx context.Context, segmentID string) (*domain.Segment, error)
	UpdateSegment(ctx context.Context, seg *domain.Segment) error
	// ListSegments returns the segments of a session ordered by index.
	ListSegments(ctx context.Context, sessionID string) ([]*domain.Segment, error)
}

// AppliedLedger persists the idempotency keys of applied job completions.
type AppliedLedger interface {
	IsApplied(ctx context.Context, key string) (bool, error)
	MarkApplied(ctx context.Context, sessionID, key string) error
	// ForgetSession drops the keys of a session that is being restarted.
	ForgetSession(ctx context.Context, sessionID string) error
}

// Store is everything the orchestrator persists.
type Store interface {
	SessionStore
	SegmentStore
	AppliedLedger
}
