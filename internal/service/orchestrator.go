package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/infrastructure/logger"
	"github.com/bnema/captioner/internal/port"
)

type SubmitRequest struct {
	SessionID string
	OwnerID   string
	VideoRef  string
}

// Orchestrator turns inbound events and job outcomes into session state
// changes, segment updates and new jobs. Every mutation of a session runs
// in that session's lane.
type Orchestrator struct {
	store    port.Store
	registry *Registry
	barriers *Barriers
	queue    port.JobQueue
	lanes    *Lanes
	styles   port.StyleCatalog
	notifier port.Notifier
	policy   RetryPolicy
	now      func() time.Time

	convert bool
}

func NewOrchestrator(
	store port.Store,
	queue port.JobQueue,
	lanes *Lanes,
	styles port.StyleCatalog,
	notifier port.Notifier,
	policy RetryPolicy,
) *Orchestrator {
	if notifier == nil {
		notifier = Notifiers(nil)
	}
	o := &Orchestrator{
		store:    store,
		barriers: NewBarriers(),
		queue:    queue,
		lanes:    lanes,
		styles:   styles,
		notifier: notifier,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
	o.registry = NewRegistry(store, func() time.Time { return o.now() })
	return o
}

// EnableConversions accepts segment conversion requests. Without it they
// are rejected, since no text converter is configured to run them.
func (o *Orchestrator) EnableConversions() {
	o.convert = true
}

// SubmitVideo starts a session for the video and schedules its split. A
// terminal session with the same id is restarted from scratch.
func (o *Orchestrator) SubmitVideo(ctx context.Context, req SubmitRequest) (*domain.Session, error) {
	if strings.TrimSpace(req.VideoRef) == "" {
		return nil, fmt.Errorf("%w: video ref is required", domain.ErrInvalidEvent)
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	var out *domain.Session
	err := o.lanes.Do(ctx, req.SessionID, func(ctx context.Context) error {
		sess, err := o.prepareSession(ctx, req)
		if err != nil {
			return err
		}

		job, err := domain.NewJob(domain.JobTypeSplitVideo, sess.ID, "", 0, domain.SplitPayload{VideoRef: sess.VideoRef})
		if err != nil {
			return err
		}
		if _, err := o.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue split: %w", err)
		}
		if err := o.transition(ctx, sess, domain.EventVideoReceived); err != nil {
			return err
		}
		o.notify(ctx, sess, nil)
		out = sess.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) prepareSession(ctx context.Context, req SubmitRequest) (*domain.Session, error) {
	existing, err := o.store.GetSession(ctx, req.SessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing == nil {
		sess := domain.NewSession(req.SessionID, req.OwnerID, req.VideoRef)
		if err := o.store.CreateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return sess, nil
	}

	// An IDLE session never got its split enqueued and may be resubmitted.
	if !existing.IsTerminal() && existing.State != domain.SessionIdle {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrDuplicateSession, existing.ID, existing.State)
	}

	if _, err := o.queue.CancelSession(ctx, existing.ID); err != nil {
		return nil, fmt.Errorf("cancel previous jobs: %w", err)
	}
	if err := o.store.ForgetSession(ctx, existing.ID); err != nil {
		return nil, fmt.Errorf("forget applied jobs: %w", err)
	}
	if _, err := o.registry.CreateSegments(ctx, existing.ID, nil); err != nil {
		return nil, err
	}
	o.barriers.Forget(existing.ID)

	existing.Reset(req.OwnerID, req.VideoRef)
	if err := o.store.UpdateSession(ctx, existing); err != nil {
		return nil, fmt.Errorf("reset session: %w", err)
	}
	logger.Info.Printf("session %s: restarted", existing.ID)
	return existing, nil
}

// OnJobCompleted applies a successful job result. Redelivered completions,
// results for superseded work and results of jobs that were cancelled or
// already settled are accepted without side effects.
func (o *Orchestrator) OnJobCompleted(ctx context.Context, jobID string, result domain.JobResult) error {
	job, err := o.queue.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job %s: %w", jobID, err)
	}
	if result == nil || result.JobType() != job.Type {
		return fmt.Errorf("%w: result does not match job type %s", domain.ErrInvalidEvent, job.Type)
	}

	settled := false
	err = o.lanes.Do(ctx, job.SessionID, func(ctx context.Context) error {
		current, err := o.liveJob(ctx, jobID)
		if err != nil {
			return err
		}
		if current == nil {
			settled = true
			return nil
		}
		return o.applyResult(ctx, current, result)
	})
	if settled {
		return nil
	}
	if err == nil || errors.Is(err, domain.ErrValidation) {
		if cerr := o.queue.Complete(ctx, jobID); cerr != nil {
			logger.Error.Printf("job %s: failed to mark complete: %v", jobID, cerr)
		}
	}
	return err
}

// liveJob re-reads the job inside the session lane. It returns nil for a
// settled job: a session restart cancels the jobs of the previous run, and
// their late outcomes must not reach the new one.
func (o *Orchestrator) liveJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := o.queue.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if job.Status.Settled() {
		logger.Debug.Printf("job %s is %s, ignoring its outcome", job.ID, job.Status)
		return nil, nil
	}
	return job, nil
}

func (o *Orchestrator) applyResult(ctx context.Context, job *domain.Job, result domain.JobResult) error {
	key := job.IdempotencyKey()
	applied, err := o.store.IsApplied(ctx, key)
	if err != nil {
		return err
	}
	if applied {
		logger.Debug.Printf("job %s: %s already applied", job.ID, key)
		return nil
	}

	sess, err := o.store.GetSession(ctx, job.SessionID)
	if err != nil {
		return err
	}
	if sess.IsTerminal() {
		logger.Debug.Printf("job %s: session %s is %s, ignoring result", job.ID, sess.ID, sess.State)
		return nil
	}

	switch r := result.(type) {
	case domain.SplitResult:
		err = o.applySplit(ctx, sess, r)
	case domain.TranscribeResult:
		err = o.applyTranscript(ctx, sess, job, r)
	case domain.PreviewResult:
		err = o.applyPreview(ctx, sess, job, r)
	case domain.RenderResult:
		err = o.applyRender(ctx, sess, r)
	default:
		err = fmt.Errorf("%w: unknown result %T", domain.ErrInvalidEvent, result)
	}
	if err != nil {
		return err
	}
	return o.store.MarkApplied(ctx, sess.ID, key)
}

func (o *Orchestrator) applySplit(ctx context.Context, sess *domain.Session, r domain.SplitResult) error {
	if !Accepts(sess.State, domain.EventSplitSucceeded) {
		return fmt.Errorf("%w: %s in state %s", domain.ErrInvalidTransition, domain.EventSplitSucceeded, sess.State)
	}
	if len(r.Segments) == 0 {
		return o.fail(ctx, sess, "the video could not be split into segments")
	}

	segs, err := o.registry.CreateSegments(ctx, sess.ID, r.Segments)
	if err != nil {
		return err
	}
	sess.SegmentIDs = make([]string, len(segs))
	for i, seg := range segs {
		sess.SegmentIDs[i] = seg.ID
	}
	if err := o.transition(ctx, sess, domain.EventSplitSucceeded); err != nil {
		return err
	}
	o.notify(ctx, sess, nil)

	o.barriers.Arm(sess.ID, domain.SegmentTranscribed, len(segs))
	if err := o.scheduleTranscriptions(ctx, sess, segs); err != nil {
		return err
	}
	if err := o.transition(ctx, sess, domain.EventSegmentsCreated); err != nil {
		return err
	}
	o.notify(ctx, sess, nil)
	return nil
}

func (o *Orchestrator) scheduleTranscriptions(ctx context.Context, sess *domain.Session, segs []*domain.Segment) error {
	for _, seg := range segs {
		if seg.Status != domain.SegmentPendingSplit {
			continue
		}
		job, err := domain.NewJob(domain.JobTypeTranscribeSegment, sess.ID, seg.ID, seg.Revision,
			domain.TranscribePayload{SegmentRef: seg.SourceRef})
		if err != nil {
			return err
		}
		if _, err := o.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue transcription of %s: %w", seg.ID, err)
		}
		if err := o.registry.UpdateStatus(ctx, seg, domain.SegmentTranscribing); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) applyTranscript(ctx context.Context, sess *domain.Session, job *domain.Job, r domain.TranscribeResult) error {
	if sess.State != domain.SessionTranscribing {
		return fmt.Errorf("%w: transcript in state %s", domain.ErrInvalidTransition, sess.State)
	}
	seg, ok, err := o.currentSegment(ctx, sess, job)
	if err != nil || !ok {
		return err
	}
	if seg.Status.AtLeast(domain.SegmentTranscribed) {
		return nil
	}
	if err := o.registry.SetTranscript(ctx, seg, r.Text); err != nil {
		return err
	}
	o.notify(ctx, sess, seg)

	if !o.barriers.Arrive(sess.ID, domain.SegmentTranscribed, seg.ID) {
		return nil
	}
	return o.completeBarrier(ctx, sess, domain.SegmentTranscribed, domain.EventAllSegmentsTranscribed)
}

func (o *Orchestrator) applyPreview(ctx context.Context, sess *domain.Session, job *domain.Job, r domain.PreviewResult) error {
	if sess.State != domain.SessionGeneratingPreviews && sess.State != domain.SessionChunkReview {
		return fmt.Errorf("%w: preview in state %s", domain.ErrInvalidTransition, sess.State)
	}
	seg, ok, err := o.currentSegment(ctx, sess, job)
	if err != nil || !ok {
		return err
	}
	if seg.Status != domain.SegmentPreviewPending {
		return nil
	}
	if err := o.registry.SetPreview(ctx, seg, r.PreviewRef, r.Transcript); err != nil {
		return err
	}
	o.notify(ctx, sess, seg)

	if sess.State == domain.SessionGeneratingPreviews &&
		o.barriers.Arrive(sess.ID, domain.SegmentPreviewReady, seg.ID) {
		return o.completeBarrier(ctx, sess, domain.SegmentPreviewReady, domain.EventAllPreviewsReady)
	}
	return nil
}

func (o *Orchestrator) applyRender(ctx context.Context, sess *domain.Session, r domain.RenderResult) error {
	if err := o.transitionCheck(sess, domain.EventRenderSucceeded); err != nil {
		return err
	}
	sess.OutputRef = r.OutputRef
	if err := o.transition(ctx, sess, domain.EventRenderSucceeded); err != nil {
		return err
	}
	o.barriers.Forget(sess.ID)
	o.notify(ctx, sess, nil)
	return nil
}

// currentSegment loads the job's segment and reports false when the job
// was issued for an older revision.
func (o *Orchestrator) currentSegment(ctx context.Context, sess *domain.Session, job *domain.Job) (*domain.Segment, bool, error) {
	seg, err := o.registry.Get(ctx, sess.ID, job.SegmentID)
	if err != nil {
		return nil, false, err
	}
	if seg.Revision != job.Revision {
		logger.Debug.Printf("job %s: segment %s revision %d superseded by %d", job.ID, seg.ID, job.Revision, seg.Revision)
		return nil, false, nil
	}
	return seg, true, nil
}

// completeBarrier re-reads the registry before moving the session, so a
// fired barrier only counts if every segment really reached the status.
func (o *Orchestrator) completeBarrier(ctx context.Context, sess *domain.Session, status domain.SegmentStatus, event domain.EventKind) error {
	all, err := o.registry.AllAtLeast(ctx, sess.ID, status)
	if err != nil {
		return err
	}
	if !all {
		logger.Warn.Printf("session %s: %s barrier fired but registry disagrees, re-arming", sess.ID, status)
		return o.rearm(ctx, sess, status)
	}
	o.barriers.Disarm(sess.ID, status)

	switch event {
	case domain.EventAllSegmentsApproved:
		return o.scheduleRender(ctx, sess)
	case domain.EventAllPreviewsReady:
		if err := o.transition(ctx, sess, event); err != nil {
			return err
		}
		if _, err := o.rearmAndCheck(ctx, sess, domain.SegmentApproved); err != nil {
			return err
		}
	default:
		if err := o.transition(ctx, sess, event); err != nil {
			return err
		}
	}
	o.notify(ctx, sess, nil)
	return nil
}

func (o *Orchestrator) rearm(ctx context.Context, sess *domain.Session, status domain.SegmentStatus) error {
	_, err := o.rearmAndCheck(ctx, sess, status)
	return err
}

// rearmAndCheck seeds the barrier from persisted segment statuses.
func (o *Orchestrator) rearmAndCheck(ctx context.Context, sess *domain.Session, status domain.SegmentStatus) (bool, error) {
	segs, err := o.registry.List(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	reached := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg.Status.AtLeast(status) {
			reached = append(reached, seg.ID)
		}
	}
	return o.barriers.Seed(sess.ID, status, len(segs), reached), nil
}

func (o *Orchestrator) scheduleRender(ctx context.Context, sess *domain.Session) error {
	if err := o.transitionCheck(sess, domain.EventAllSegmentsApproved); err != nil {
		return err
	}
	style, err := o.sessionStyle(sess)
	if err != nil {
		return err
	}
	segs, err := o.registry.List(ctx, sess.ID)
	if err != nil {
		return err
	}

	payload := domain.RenderPayload{Style: style, Parts: make([]domain.RenderPart, len(segs))}
	for i, seg := range segs {
		payload.Parts[i] = domain.RenderPart{
			SegmentRef: seg.SourceRef,
			Transcript: seg.Transcript(),
			Mode:       seg.EffectiveMode(sess.CaptionMode),
			DurationMs: seg.EndMs - seg.StartMs,
		}
	}
	job, err := domain.NewJob(domain.JobTypeRenderFinal, sess.ID, "", 0, payload)
	if err != nil {
		return err
	}
	if _, err := o.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue render: %w", err)
	}
	if err := o.transition(ctx, sess, domain.EventAllSegmentsApproved); err != nil {
		return err
	}
	o.barriers.Forget(sess.ID)
	o.notify(ctx, sess, nil)
	return nil
}

// OnJobFailed retries transient failures with backoff and fails the
// session once the job cannot succeed.
func (o *Orchestrator) OnJobFailed(ctx context.Context, jobID string, jobErr error, attempt int) error {
	job, err := o.queue.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job %s: %w", jobID, err)
	}
	if jobErr == nil {
		jobErr = errors.New("unknown error")
	}

	return o.lanes.Do(ctx, job.SessionID, func(ctx context.Context) error {
		job, err := o.liveJob(ctx, jobID)
		if err != nil || job == nil {
			return err
		}
		applied, err := o.store.IsApplied(ctx, job.IdempotencyKey())
		if err != nil {
			return err
		}
		sess, err := o.store.GetSession(ctx, job.SessionID)
		if err != nil {
			return err
		}
		if applied || sess.IsTerminal() {
			return o.queue.Dead(ctx, jobID, jobErr.Error())
		}

		var seg *domain.Segment
		if job.SegmentID != "" {
			current, ok, err := o.currentSegment(ctx, sess, job)
			if err != nil {
				return err
			}
			if !ok {
				return o.queue.Dead(ctx, jobID, "superseded: "+jobErr.Error())
			}
			seg = current
		}

		if o.policy.ShouldRetry(jobErr, attempt) {
			delay := o.policy.NextDelay(attempt)
			logger.Warn.Printf("job %s (%s) attempt %d failed, retrying in %s: %v", jobID, job.Type, attempt, delay, jobErr)
			return o.queue.Retry(ctx, jobID, o.now().Add(delay), jobErr.Error())
		}

		logger.Error.Printf("job %s (%s) failed permanently after %d attempts: %v", jobID, job.Type, attempt, jobErr)
		if err := o.queue.Dead(ctx, jobID, jobErr.Error()); err != nil {
			return err
		}
		return o.fail(ctx, sess, failureReason(job.Type, seg, jobErr, attempt))
	})
}

func failureReason(jobType domain.JobType, seg *domain.Segment, err error, attempt int) string {
	what := jobType.Label()
	if seg != nil {
		what = fmt.Sprintf("%s segment %d", what, seg.Index+1)
	}
	if domain.IsTransient(err) {
		return fmt.Sprintf("%s failed after %d attempts", what, attempt)
	}
	return fmt.Sprintf("%s failed: the input could not be processed", what)
}

func (o *Orchestrator) fail(ctx context.Context, sess *domain.Session, reason string) error {
	sess.FailureReason = reason
	if err := o.transition(ctx, sess, domain.EventJobExhaustedRetries); err != nil {
		return err
	}
	if n, err := o.queue.CancelSession(ctx, sess.ID); err != nil {
		logger.Error.Printf("session %s: failed to cancel jobs: %v", sess.ID, err)
	} else if n > 0 {
		logger.Info.Printf("session %s: cancelled %d jobs", sess.ID, n)
	}
	o.barriers.Forget(sess.ID)
	o.notify(ctx, sess, nil)
	return nil
}

// ApplyUserEvent validates a user event against the session state and
// applies it.
func (o *Orchestrator) ApplyUserEvent(ctx context.Context, sessionID string, ev domain.UserEvent) error {
	if ev == nil {
		return fmt.Errorf("%w: empty event", domain.ErrInvalidEvent)
	}
	return o.lanes.Do(ctx, sessionID, func(ctx context.Context) error {
		sess, err := o.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := o.transitionCheck(sess, ev.Kind()); err != nil {
			return err
		}

		switch e := ev.(type) {
		case domain.StyleChosen:
			return o.chooseStyle(ctx, sess, e)
		case domain.SegmentApproval:
			return o.approve(ctx, sess, e)
		case domain.SegmentEdited:
			seg, err := o.registry.Get(ctx, sess.ID, e.SegmentID)
			if err != nil {
				return err
			}
			seg.EditedTranscript = e.Text
			seg.PendingConvert = ""
			return o.invalidate(ctx, sess, seg)
		case domain.SegmentConverted:
			if !o.convert {
				return fmt.Errorf("%w: text conversion is not available", domain.ErrInvalidEvent)
			}
			seg, err := o.registry.Get(ctx, sess.ID, e.SegmentID)
			if err != nil {
				return err
			}
			seg.PendingConvert = e.Conversion
			return o.invalidate(ctx, sess, seg)
		case domain.CaptionModeChanged:
			return o.changeMode(ctx, sess, e)
		default:
			return fmt.Errorf("%w: unsupported event %T", domain.ErrInvalidEvent, ev)
		}
	})
}

func (o *Orchestrator) chooseStyle(ctx context.Context, sess *domain.Session, e domain.StyleChosen) error {
	style, ok := o.styles.Style(e.StyleID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownStyle, e.StyleID)
	}
	segs, err := o.registry.List(ctx, sess.ID)
	if err != nil {
		return err
	}

	sess.CaptionStyle = style.ID
	o.barriers.Arm(sess.ID, domain.SegmentPreviewReady, len(segs))
	for _, seg := range segs {
		if err := o.schedulePreview(ctx, sess, seg, style); err != nil {
			return err
		}
	}
	if err := o.transition(ctx, sess, domain.EventStyleChosen); err != nil {
		return err
	}
	o.notify(ctx, sess, nil)
	return nil
}

func (o *Orchestrator) approve(ctx context.Context, sess *domain.Session, e domain.SegmentApproval) error {
	seg, err := o.registry.Get(ctx, sess.ID, e.SegmentID)
	if err != nil {
		return err
	}
	if seg.Status == domain.SegmentApproved {
		return nil
	}
	if err := o.registry.MarkApproved(ctx, seg); err != nil {
		return err
	}
	o.notify(ctx, sess, seg)

	if !o.barriers.Arrive(sess.ID, domain.SegmentApproved, seg.ID) {
		return nil
	}
	return o.completeBarrier(ctx, sess, domain.SegmentApproved, domain.EventAllSegmentsApproved)
}

func (o *Orchestrator) changeMode(ctx context.Context, sess *domain.Session, e domain.CaptionModeChanged) error {
	if e.SegmentID != "" {
		seg, err := o.registry.Get(ctx, sess.ID, e.SegmentID)
		if err != nil {
			return err
		}
		if seg.Mode == e.Mode {
			return nil
		}
		if sess.State != domain.SessionChunkReview {
			return o.registry.SetMode(ctx, seg, e.Mode)
		}
		seg.Mode = e.Mode
		return o.invalidate(ctx, sess, seg)
	}

	if sess.CaptionMode == e.Mode {
		return nil
	}
	sess.CaptionMode = e.Mode
	sess.UpdatedAt = o.now()
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return err
	}
	o.notify(ctx, sess, nil)
	if sess.State != domain.SessionChunkReview {
		return nil
	}

	segs, err := o.registry.List(ctx, sess.ID)
	if err != nil {
		return err
	}
	for _, seg := range segs {
		if seg.Mode != "" {
			continue
		}
		if err := o.invalidate(ctx, sess, seg); err != nil {
			return err
		}
	}
	return nil
}

// invalidate drops the preview and approval of one segment and schedules
// a preview for its new revision. No other segment is touched.
func (o *Orchestrator) invalidate(ctx context.Context, sess *domain.Session, seg *domain.Segment) error {
	style, err := o.sessionStyle(sess)
	if err != nil {
		return err
	}
	if err := o.registry.MarkStale(ctx, seg); err != nil {
		return err
	}
	o.barriers.Depart(sess.ID, domain.SegmentApproved, seg.ID)
	if err := o.schedulePreview(ctx, sess, seg, style); err != nil {
		return err
	}
	o.notify(ctx, sess, seg)
	return nil
}

func (o *Orchestrator) schedulePreview(ctx context.Context, sess *domain.Session, seg *domain.Segment, style domain.Style) error {
	payload := domain.PreviewPayload{
		SegmentRef: seg.SourceRef,
		Transcript: seg.Transcript(),
		Style:      style,
		Mode:       seg.EffectiveMode(sess.CaptionMode),
		Conversion: seg.PendingConvert,
		DurationMs: seg.EndMs - seg.StartMs,
	}
	job, err := domain.NewJob(domain.JobTypeGeneratePreview, sess.ID, seg.ID, seg.Revision, payload)
	if err != nil {
		return err
	}
	if _, err := o.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue preview of %s: %w", seg.ID, err)
	}
	return o.registry.UpdateStatus(ctx, seg, domain.SegmentPreviewPending)
}

func (o *Orchestrator) sessionStyle(sess *domain.Session) (domain.Style, error) {
	style, ok := o.styles.Style(sess.CaptionStyle)
	if !ok {
		return domain.Style{}, fmt.Errorf("%w: %q", domain.ErrUnknownStyle, sess.CaptionStyle)
	}
	return style, nil
}

// Rehydrate rebuilds barriers of every in-flight session from persisted
// segment statuses, completes barriers that were already reached and
// reschedules segments left without a job.
func (o *Orchestrator) Rehydrate(ctx context.Context) error {
	sessions, err := o.store.ListActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("list active sessions: %w", err)
	}
	for _, s := range sessions {
		err := o.lanes.Do(ctx, s.ID, func(ctx context.Context) error {
			sess, err := o.store.GetSession(ctx, s.ID)
			if err != nil {
				return err
			}
			return o.rehydrateSession(ctx, sess)
		})
		if err != nil {
			logger.Error.Printf("session %s: rehydrate failed: %v", s.ID, err)
			continue
		}
	}
	logger.Info.Printf("rehydrated %d sessions", len(sessions))
	return nil
}

func (o *Orchestrator) rehydrateSession(ctx context.Context, sess *domain.Session) error {
	switch sess.State {
	case domain.SessionProcessing:
		segs, err := o.registry.List(ctx, sess.ID)
		if err != nil {
			return err
		}
		o.barriers.Arm(sess.ID, domain.SegmentTranscribed, len(segs))
		if err := o.scheduleTranscriptions(ctx, sess, segs); err != nil {
			return err
		}
		if err := o.transition(ctx, sess, domain.EventSegmentsCreated); err != nil {
			return err
		}
		o.notify(ctx, sess, nil)
		return nil

	case domain.SessionTranscribing:
		segs, err := o.registry.List(ctx, sess.ID)
		if err != nil {
			return err
		}
		if err := o.scheduleTranscriptions(ctx, sess, segs); err != nil {
			return err
		}
		return o.rehydrateBarrier(ctx, sess, domain.SegmentTranscribed, domain.EventAllSegmentsTranscribed)

	case domain.SessionGeneratingPreviews:
		if err := o.rescheduleStale(ctx, sess); err != nil {
			return err
		}
		return o.rehydrateBarrier(ctx, sess, domain.SegmentPreviewReady, domain.EventAllPreviewsReady)

	case domain.SessionChunkReview:
		if err := o.rescheduleStale(ctx, sess); err != nil {
			return err
		}
		return o.rehydrateBarrier(ctx, sess, domain.SegmentApproved, domain.EventAllSegmentsApproved)
	}
	return nil
}

func (o *Orchestrator) rehydrateBarrier(ctx context.Context, sess *domain.Session, status domain.SegmentStatus, event domain.EventKind) error {
	fired, err := o.rearmAndCheck(ctx, sess, status)
	if err != nil || !fired {
		return err
	}
	return o.completeBarrier(ctx, sess, status, event)
}

func (o *Orchestrator) rescheduleStale(ctx context.Context, sess *domain.Session) error {
	segs, err := o.registry.List(ctx, sess.ID)
	if err != nil {
		return err
	}
	for _, seg := range segs {
		if seg.Status != domain.SegmentStale {
			continue
		}
		style, err := o.sessionStyle(sess)
		if err != nil {
			return err
		}
		if err := o.schedulePreview(ctx, sess, seg, style); err != nil {
			return err
		}
	}
	return nil
}

// Session returns a snapshot of the session.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return o.store.GetSession(ctx, sessionID)
}

// Segments returns the session's segments in playback order.
func (o *Orchestrator) Segments(ctx context.Context, sessionID string) ([]*domain.Segment, error) {
	if _, err := o.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return o.registry.List(ctx, sessionID)
}

// SessionsByOwner lists an owner's sessions, newest first.
func (o *Orchestrator) SessionsByOwner(ctx context.Context, ownerID string) ([]*domain.Session, error) {
	return o.store.ListSessionsByOwner(ctx, ownerID)
}

// Styles lists the caption styles a user can choose from.
func (o *Orchestrator) Styles() []domain.Style {
	return o.styles.Styles()
}

func (o *Orchestrator) transitionCheck(sess *domain.Session, event domain.EventKind) error {
	_, err := NextState(sess.State, event)
	return err
}

func (o *Orchestrator) transition(ctx context.Context, sess *domain.Session, event domain.EventKind) error {
	to, err := NextState(sess.State, event)
	if err != nil {
		return err
	}
	logger.Info.Printf("session %s: %s -> %s (%s)", sess.ID, sess.State, to, event)
	sess.State = to
	sess.UpdatedAt = o.now()
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, sess *domain.Session, seg *domain.Segment) {
	u := port.Update{Session: sess.Clone()}
	if seg != nil {
		u.Segment = seg.Clone()
	}
	o.notifier.Notify(ctx, u)
}
