package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/infrastructure/logger"
	"github.com/bnema/captioner/internal/port"
)

// Executor runs one job and returns its typed result.
type Executor func(ctx context.Context, job *domain.Job) (domain.JobResult, error)

// Executors is the dispatch table of the worker pool, one entry per job type.
type Executors struct {
	Split      Executor
	Transcribe Executor
	Preview    Executor
	Render     Executor
}

func (e Executors) lookup(t domain.JobType) Executor {
	switch t {
	case domain.JobTypeSplitVideo:
		return e.Split
	case domain.JobTypeTranscribeSegment:
		return e.Transcribe
	case domain.JobTypeGeneratePreview:
		return e.Preview
	case domain.JobTypeRenderFinal:
		return e.Render
	}
	return nil
}

func (e Executors) validate() error {
	for _, t := range []domain.JobType{
		domain.JobTypeSplitVideo,
		domain.JobTypeTranscribeSegment,
		domain.JobTypeGeneratePreview,
		domain.JobTypeRenderFinal,
	} {
		if e.lookup(t) == nil {
			return fmt.Errorf("no executor for job type %s", t)
		}
	}
	return nil
}

// JobReporter receives job outcomes. The orchestrator implements it.
type JobReporter interface {
	OnJobCompleted(ctx context.Context, jobID string, result domain.JobResult) error
	OnJobFailed(ctx context.Context, jobID string, err error, attempt int) error
}

type WorkerConfig struct {
	Workers      int
	PollInterval time.Duration
	JobTimeout   time.Duration
	Grace        time.Duration
	// RequeueDelay applies when a job outcome could not be reported.
	RequeueDelay time.Duration
}

type WorkerPool struct {
	jobQueue  port.JobQueue
	reporter  JobReporter
	executors Executors
	cfg       WorkerConfig

	claimCancel context.CancelFunc
	jobCancel   context.CancelFunc
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

func NewWorkerPool(jobQueue port.JobQueue, reporter JobReporter, executors Executors, cfg WorkerConfig) (*WorkerPool, error) {
	if err := executors.validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 30 * time.Second
	}
	if cfg.RequeueDelay <= 0 {
		cfg.RequeueDelay = 5 * time.Second
	}
	return &WorkerPool{
		jobQueue:  jobQueue,
		reporter:  reporter,
		executors: executors,
		cfg:       cfg,
	}, nil
}

func (wp *WorkerPool) Start(ctx context.Context) {
	// Jobs left running by a previous process are claimable again.
	if n, err := wp.jobQueue.ResetStalled(ctx); err != nil {
		logger.Error.Printf("failed to reset stalled jobs: %v", err)
	} else if n > 0 {
		logger.Info.Printf("reset %d stalled jobs", n)
	}

	claimCtx, claimCancel := context.WithCancel(ctx)
	jobCtx, jobCancel := context.WithCancel(context.WithoutCancel(ctx))
	wp.claimCancel = claimCancel
	wp.jobCancel = jobCancel

	for i := range wp.cfg.Workers {
		wp.wg.Add(1)
		go wp.runWorker(claimCtx, jobCtx, i)
	}
	logger.Info.Printf("started %d workers", wp.cfg.Workers)
}

// Stop stops claiming, lets in-flight jobs finish within the grace period
// and then cancels them. Calling Stop again is a no-op.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		if wp.claimCancel == nil {
			return
		}
		wp.claimCancel()

		done := make(chan struct{})
		go func() {
			wp.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(wp.cfg.Grace):
			logger.Warn.Printf("workers still busy after %s, cancelling in-flight jobs", wp.cfg.Grace)
			wp.jobCancel()
			<-done
		}
		wp.jobCancel()
		logger.Info.Printf("workers stopped")
	})
}

func (wp *WorkerPool) runWorker(claimCtx, jobCtx context.Context, id int) {
	defer wp.wg.Done()
	for {
		if claimCtx.Err() != nil {
			logger.Debug.Printf("worker %d shutting down", id)
			return
		}

		job, err := wp.jobQueue.Claim(claimCtx)
		if err != nil {
			if claimCtx.Err() == nil {
				logger.Error.Printf("worker %d: failed to claim job: %v", id, err)
			}
			sleep(claimCtx, 2*time.Second)
			continue
		}

		if job == nil {
			sleep(claimCtx, wp.cfg.PollInterval)
			continue
		}

		logger.Info.Printf("worker %d: processing job %s (type=%s, session=%s, segment=%s, attempt=%d)",
			id, job.ID, job.Type, job.SessionID, job.SegmentID, job.Attempt)
		wp.processJob(jobCtx, job)
	}
}

func (wp *WorkerPool) processJob(ctx context.Context, job *domain.Job) {
	runCtx, cancel := context.WithTimeout(ctx, wp.cfg.JobTimeout)
	result, err := wp.execute(runCtx, job)
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	cancel()

	if ctx.Err() != nil {
		// Shutdown interrupted the job; it is picked up again on next start.
		logger.Warn.Printf("job %s interrupted by shutdown", job.ID)
		return
	}

	reportCtx, reportCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer reportCancel()

	if err == nil && (result == nil || result.JobType() != job.Type) {
		err = domain.Permanent(fmt.Errorf("executor returned %T for %s", result, job.Type))
	}
	if err != nil {
		if timedOut {
			err = domain.Transient(fmt.Errorf("timed out after %s: %w", wp.cfg.JobTimeout, err))
		}
		logger.Error.Printf("job %s failed: %v", job.ID, err)
		if rerr := wp.reporter.OnJobFailed(reportCtx, job.ID, err, job.Attempt); rerr != nil {
			logger.Error.Printf("job %s: failed to report failure: %v", job.ID, rerr)
			wp.requeue(reportCtx, job, err)
		}
		return
	}

	if rerr := wp.reporter.OnJobCompleted(reportCtx, job.ID, result); rerr != nil {
		if errors.Is(rerr, domain.ErrValidation) {
			logger.Warn.Printf("job %s: result rejected: %v", job.ID, rerr)
			return
		}
		logger.Error.Printf("job %s: failed to apply result: %v", job.ID, rerr)
		if ferr := wp.reporter.OnJobFailed(reportCtx, job.ID, domain.Transient(rerr), job.Attempt); ferr != nil {
			logger.Error.Printf("job %s: failed to report failure: %v", job.ID, ferr)
			wp.requeue(reportCtx, job, rerr)
		}
		return
	}
	logger.Info.Printf("job %s completed", job.ID)
}

// requeue puts back a job whose outcome nobody recorded, so it runs again
// instead of staying claimed until the next start.
func (wp *WorkerPool) requeue(ctx context.Context, job *domain.Job, cause error) {
	runAt := time.Now().UTC().Add(wp.cfg.RequeueDelay)
	if err := wp.jobQueue.Retry(ctx, job.ID, runAt, cause.Error()); err != nil {
		logger.Error.Printf("job %s: failed to requeue: %v", job.ID, err)
		return
	}
	logger.Warn.Printf("job %s requeued, runs again in %s", job.ID, wp.cfg.RequeueDelay)
}

// execute runs the executor and turns a panic into a permanent failure.
func (wp *WorkerPool) execute(ctx context.Context, job *domain.Job) (result domain.JobResult, err error) {
	exec := wp.executors.lookup(job.Type)
	if exec == nil {
		return nil, domain.Permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error.Printf("job %s: executor panicked: %v", job.ID, r)
			result = nil
			err = domain.Permanent(fmt.Errorf("executor panicked: %v", r))
		}
	}()
	return exec(ctx, job)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
