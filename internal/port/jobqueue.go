package port

import (
	"context"
	"time"

	"github.com/bnema/captioner/internal/domain"
)

// JobQueue is a durable at-least-once queue. Claim returns (nil, nil) when
// no job is due.
type JobQueue interface {
	Enqueue(ctx context.Context, job *domain.Job) (string, error)
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	Claim(ctx context.Context) (*domain.Job, error)
	Complete(ctx context.Context, jobID string) error
	Retry(ctx context.Context, jobID string, runAt time.Time, errMsg string) error
	Dead(ctx context.Context, jobID string, errMsg string) error
	CancelSession(ctx context.Context, sessionID string) (int, error)
	ResetStalled(ctx context.Context) (int, error)
}
