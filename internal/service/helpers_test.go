package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bnema/captioner/internal/adapter/storage/jsonfile"
	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/port"
)

// memQueue is an in-memory port.JobQueue.
type memQueue struct {
	mu         sync.Mutex
	jobs       map[string]*domain.Job
	seq        int
	seqOf      map[string]int
	enqueueErr error
	now        func() time.Time
}

var _ port.JobQueue = (*memQueue)(nil)

func newMemQueue() *memQueue {
	return &memQueue{
		jobs:  make(map[string]*domain.Job),
		seqOf: make(map[string]int),
		now:   time.Now,
	}
}

func (q *memQueue) Enqueue(_ context.Context, job *domain.Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}
	c := *job
	q.jobs[job.ID] = &c
	q.seq++
	q.seqOf[job.ID] = q.seq
	return job.ID, nil
}

func (q *memQueue) Get(_ context.Context, jobID string) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *job
	return &c, nil
}

func (q *memQueue) Claim(_ context.Context) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var best *domain.Job
	for _, job := range q.jobs {
		if job.Status != domain.JobStatusPending || job.RunAt.After(q.now()) {
			continue
		}
		if best == nil || q.seqOf[job.ID] < q.seqOf[best.ID] {
			best = job
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Status = domain.JobStatusRunning
	c := *best
	return &c, nil
}

func (q *memQueue) Complete(_ context.Context, jobID string) error {
	return q.set(jobID, domain.JobStatusDone, "")
}

func (q *memQueue) Retry(_ context.Context, jobID string, runAt time.Time, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusPending
	job.Attempt++
	job.RunAt = runAt
	job.LastError = errMsg
	return nil
}

func (q *memQueue) Dead(_ context.Context, jobID string, errMsg string) error {
	return q.set(jobID, domain.JobStatusDead, errMsg)
}

func (q *memQueue) CancelSession(_ context.Context, sessionID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, job := range q.jobs {
		if job.SessionID == sessionID && (job.Status == domain.JobStatusPending || job.Status == domain.JobStatusRunning) {
			job.Status = domain.JobStatusCancelled
			n++
		}
	}
	return n, nil
}

func (q *memQueue) ResetStalled(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, job := range q.jobs {
		if job.Status == domain.JobStatusRunning {
			job.Status = domain.JobStatusPending
			n++
		}
	}
	return n, nil
}

func (q *memQueue) set(jobID string, status domain.JobStatus, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	job.LastError = errMsg
	return nil
}

// ofType returns the jobs of a type in enqueue order.
func (q *memQueue) ofType(t domain.JobType) []*domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*domain.Job
	for _, job := range q.jobs {
		if job.Type == t {
			c := *job
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return q.seqOf[out[i].ID] < q.seqOf[out[j].ID] })
	return out
}

func (q *memQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type staticStyles map[string]domain.Style

func (s staticStyles) Style(id string) (domain.Style, bool) {
	st, ok := s[id]
	return st, ok
}

func (s staticStyles) Styles() []domain.Style {
	out := make([]domain.Style, 0, len(s))
	for _, st := range s {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var testStyles = staticStyles{
	"classic": {ID: "classic", Name: "Classic", Font: "Arial", FontSize: 48},
	"bold":    {ID: "bold", Name: "Bold", Font: "Impact", FontSize: 64, Bold: true},
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []port.Update
}

func (r *recordingNotifier) Notify(_ context.Context, u port.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recordingNotifier) last() port.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[len(r.updates)-1]
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *jsonfile.Store
	queue    *memQueue
	lanes    *Lanes
	notifier *recordingNotifier
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, mustJSONStore(t, t.TempDir()))
}

func mustJSONStore(t *testing.T, dir string) *jsonfile.Store {
	t.Helper()
	store, err := jsonfile.NewStore(dir)
	require.NoError(t, err)
	return store
}

func newHarnessWithStore(t *testing.T, store *jsonfile.Store) *harness {
	t.Helper()
	queue := newMemQueue()
	lanes := NewLanes(4, 64)
	t.Cleanup(lanes.Stop)
	notifier := &recordingNotifier{}
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 10 * time.Millisecond}
	orch := NewOrchestrator(store, queue, lanes, testStyles, notifier, policy)
	orch.EnableConversions()
	return &harness{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		queue:    queue,
		lanes:    lanes,
		notifier: notifier,
		orch:     orch,
	}
}

func (h *harness) session(id string) *domain.Session {
	h.t.Helper()
	sess, err := h.orch.Session(h.ctx, id)
	require.NoError(h.t, err)
	return sess
}

func (h *harness) segments(id string) []*domain.Segment {
	h.t.Helper()
	segs, err := h.orch.Segments(h.ctx, id)
	require.NoError(h.t, err)
	return segs
}

func (h *harness) statuses(id string) []domain.SegmentStatus {
	segs := h.segments(id)
	out := make([]domain.SegmentStatus, len(segs))
	for i, seg := range segs {
		out[i] = seg.Status
	}
	return out
}

func (h *harness) complete(job *domain.Job, result domain.JobResult) {
	h.t.Helper()
	require.NoError(h.t, h.orch.OnJobCompleted(h.ctx, job.ID, result))
}

func (h *harness) segmentJob(t domain.JobType, segmentID string, revision int) *domain.Job {
	h.t.Helper()
	for _, job := range h.queue.ofType(t) {
		if job.SegmentID == segmentID && job.Revision == revision {
			return job
		}
	}
	h.t.Fatalf("no %s job for %s@%d", t, segmentID, revision)
	return nil
}

// toStyleSelection submits a video split into n segments and transcribes them all.
func (h *harness) toStyleSelection(id string, n int) {
	h.t.Helper()
	_, err := h.orch.SubmitVideo(h.ctx, SubmitRequest{SessionID: id, OwnerID: "owner", VideoRef: "/videos/" + id + ".mp4"})
	require.NoError(h.t, err)

	split := h.queue.ofType(domain.JobTypeSplitVideo)
	require.NotEmpty(h.t, split)
	outs := make([]domain.SegmentOutput, n)
	for i := range outs {
		outs[i] = domain.SegmentOutput{Ref: "/work/chunk.mp4", StartMs: int64(i) * 10000, EndMs: int64(i+1) * 10000}
	}
	h.complete(split[len(split)-1], domain.SplitResult{Segments: outs})

	for _, seg := range h.segments(id) {
		h.complete(h.segmentJob(domain.JobTypeTranscribeSegment, seg.ID, 0), domain.TranscribeResult{Text: "hello " + seg.ID})
	}
}

// toChunkReview continues to CHUNK_REVIEW with every preview ready.
func (h *harness) toChunkReview(id string, n int) {
	h.t.Helper()
	h.toStyleSelection(id, n)
	require.NoError(h.t, h.orch.ApplyUserEvent(h.ctx, id, domain.StyleChosen{StyleID: "bold"}))
	for _, seg := range h.segments(id) {
		h.complete(h.segmentJob(domain.JobTypeGeneratePreview, seg.ID, seg.Revision), domain.PreviewResult{PreviewRef: "/previews/" + seg.ID + ".mp4"})
	}
}
