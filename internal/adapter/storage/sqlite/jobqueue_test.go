package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/captioner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*JobQueue, *time.Time) {
	t.Helper()
	q := NewJobQueue(newTestStore(t))
	now := time.Now().UTC().Truncate(time.Millisecond)
	q.now = func() time.Time { return now }
	return q, &now
}

func mustJob(t *testing.T, jobType domain.JobType, sessionID, segmentID string) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(jobType, sessionID, segmentID, 0, domain.TranscribePayload{SegmentRef: "chunk.mp4"})
	require.NoError(t, err)
	// Due at the queue clock, not the wall clock.
	job.RunAt = time.Time{}
	return job
}

func TestJobQueue_RunAtDefaultsToQueueClock(t *testing.T) {
	ctx := context.Background()
	q, now := newTestQueue(t)

	early := mustJob(t, domain.JobTypeSplitVideo, "s1", "")
	ahead := mustJob(t, domain.JobTypeSplitVideo, "s2", "")
	ahead.RunAt = now.Add(time.Millisecond)
	_, err := q.Enqueue(ctx, early)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, ahead)
	require.NoError(t, err)

	claimed, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, early.ID, claimed.ID)
	assert.True(t, claimed.RunAt.Equal(*now))

	next, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, next, "a job due one millisecond later waits for the clock")
}

func TestJobQueue_EnqueueClaimComplete(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	job := mustJob(t, domain.JobTypeTranscribeSegment, "s1", "s1-000")
	id, err := q.Enqueue(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, job.ID, id)

	claimed, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, domain.JobStatusRunning, claimed.Status)
	assert.Equal(t, 1, claimed.Attempt)

	var payload domain.TranscribePayload
	require.NoError(t, claimed.DecodePayload(&payload))
	assert.Equal(t, "chunk.mp4", payload.SegmentRef)

	next, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, next, "a running job is not claimable")

	require.NoError(t, q.Complete(ctx, job.ID))

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDone, got.Status)
}

func TestJobQueue_ClaimOrder(t *testing.T) {
	ctx := context.Background()
	q, now := newTestQueue(t)

	later := mustJob(t, domain.JobTypeSplitVideo, "s1", "")
	later.RunAt = now.Add(time.Minute)
	first := mustJob(t, domain.JobTypeSplitVideo, "s2", "")
	first.RunAt = now.Add(-time.Second)

	_, err := q.Enqueue(ctx, later)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, first)
	require.NoError(t, err)

	claimed, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)

	none, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, none, "jobs scheduled in the future are not due")
}

func TestJobQueue_RetryAndDead(t *testing.T) {
	ctx := context.Background()
	q, now := newTestQueue(t)

	job := mustJob(t, domain.JobTypeGeneratePreview, "s1", "s1-001")
	_, err := q.Enqueue(ctx, job)
	require.NoError(t, err)

	_, err = q.Claim(ctx)
	require.NoError(t, err)

	runAt := now.Add(2 * time.Second)
	require.NoError(t, q.Retry(ctx, job.ID, runAt, "timeout"))

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, "timeout", got.LastError)
	assert.True(t, got.RunAt.Equal(runAt))

	claimed, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed, "retry is not due yet")

	*now = runAt
	claimed, err = q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, q.Dead(ctx, job.ID, "corrupt input"))
	got, err = q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDead, got.Status)

	assert.ErrorIs(t, q.Retry(ctx, job.ID, runAt, "x"), domain.ErrNotFound, "only running jobs can be retried")
}

func TestJobQueue_CancelSession(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	a := mustJob(t, domain.JobTypeTranscribeSegment, "s1", "s1-000")
	b := mustJob(t, domain.JobTypeTranscribeSegment, "s1", "s1-001")
	other := mustJob(t, domain.JobTypeTranscribeSegment, "s2", "s2-000")
	for _, j := range []*domain.Job{a, b, other} {
		_, err := q.Enqueue(ctx, j)
		require.NoError(t, err)
	}

	n, err := q.CancelSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	claimed, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, other.ID, claimed.ID)

	jobs, err := q.ListBySession(ctx, "s1")
	require.NoError(t, err)
	for _, j := range jobs {
		assert.Equal(t, domain.JobStatusCancelled, j.Status)
	}
}

func TestJobQueue_ResetStalled(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	job := mustJob(t, domain.JobTypeRenderFinal, "s1", "")
	_, err := q.Enqueue(ctx, job)
	require.NoError(t, err)
	_, err = q.Claim(ctx)
	require.NoError(t, err)

	n, err := q.ResetStalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	claimed, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
}

func TestJobQueue_RejectsUnknownType(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue(context.Background(), &domain.Job{ID: "x", Type: "BOGUS", SessionID: "s"})
	assert.Error(t, err)
}

func TestJobQueue_GetMissing(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
