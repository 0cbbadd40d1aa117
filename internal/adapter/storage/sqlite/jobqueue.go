package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/port"
)

type JobQueue struct {
	db  *sql.DB
	now func() time.Time
}

func NewJobQueue(store *Store) *JobQueue {
	return &JobQueue{
		db:  store.db,
		now: time.Now,
	}
}

const jobColumns = `id, type, session_id, segment_id, revision, payload, attempt, status,
	last_error, run_at, created_at, updated_at`

func (q *JobQueue) Enqueue(ctx context.Context, job *domain.Job) (string, error) {
	if !job.Type.Valid() {
		return "", fmt.Errorf("unknown job type: %s", job.Type)
	}
	status := job.Status
	if status == "" {
		status = domain.JobStatusPending
	}
	now := q.now()
	runAt := job.RunAt
	if runAt.IsZero() {
		runAt = now
	}
	payload := string(job.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := q.db.ExecContext(ctx, `INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Type), job.SessionID, job.SegmentID, job.Revision, payload, max(job.Attempt, 1),
		string(status), job.LastError, toMillis(runAt), toMillis(now), toMillis(now))
	if err != nil {
		return "", fmt.Errorf("insert job: %w", err)
	}
	return job.ID, nil
}

func (q *JobQueue) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Claim marks the oldest due pending job as running and returns it.
func (q *JobQueue) Claim(ctx context.Context) (*domain.Job, error) {
	now := toMillis(q.now())
	row := q.db.QueryRowContext(ctx, `UPDATE jobs SET status = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs WHERE status = ? AND run_at <= ?
			ORDER BY run_at, created_at LIMIT 1
		)
		RETURNING `+jobColumns,
		string(domain.JobStatusRunning), now, string(domain.JobStatusPending), now)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (q *JobQueue) Complete(ctx context.Context, jobID string) error {
	return q.setStatus(ctx, jobID, domain.JobStatusDone, "")
}

// Retry puts a job back in the pending set with its attempt counter bumped.
func (q *JobQueue) Retry(ctx context.Context, jobID string, runAt time.Time, errMsg string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE jobs SET status = ?, attempt = attempt + 1, last_error = ?,
		run_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(domain.JobStatusPending), errMsg, toMillis(runAt), toMillis(q.now()), jobID,
		string(domain.JobStatusRunning))
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	return expectOne(res)
}

func (q *JobQueue) Dead(ctx context.Context, jobID string, errMsg string) error {
	return q.setStatus(ctx, jobID, domain.JobStatusDead, errMsg)
}

// CancelSession cancels every job of the session that has not finished.
func (q *JobQueue) CancelSession(ctx context.Context, sessionID string) (int, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE jobs SET status = ?, updated_at = ?
		WHERE session_id = ? AND status IN (?, ?)`,
		string(domain.JobStatusCancelled), toMillis(q.now()), sessionID,
		string(domain.JobStatusPending), string(domain.JobStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("cancel session jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ResetStalled returns running jobs to pending, used at startup when no
// worker can still own them.
func (q *JobQueue) ResetStalled(ctx context.Context) (int, error) {
	now := toMillis(q.now())
	res, err := q.db.ExecContext(ctx, `UPDATE jobs SET status = ?, run_at = ?, updated_at = ? WHERE status = ?`,
		string(domain.JobStatusPending), now, now, string(domain.JobStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("reset stalled jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListBySession is used by the CLI and the status page.
func (q *JobQueue) ListBySession(ctx context.Context, sessionID string) ([]*domain.Job, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var result []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

func (q *JobQueue) setStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, toMillis(q.now()), jobID)
	if err != nil {
		return fmt.Errorf("set job %s %s: %w", jobID, status, err)
	}
	return expectOne(res)
}

func scanJob(row scanner) (*domain.Job, error) {
	var (
		job                 domain.Job
		jobType, status     string
		payload             string
		runAt, created, upd int64
	)
	err := row.Scan(&job.ID, &jobType, &job.SessionID, &job.SegmentID, &job.Revision, &payload, &job.Attempt,
		&status, &job.LastError, &runAt, &created, &upd)
	if err != nil {
		return nil, err
	}
	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.Payload = []byte(payload)
	job.RunAt = fromMillis(runAt)
	job.CreatedAt = fromMillis(created)
	job.UpdatedAt = fromMillis(upd)
	return &job, nil
}

var _ port.JobQueue = (*JobQueue)(nil)
