package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bnema/captioner/internal/infrastructure/logger"
)

var (
	ErrLanesStopped = errors.New("session lanes stopped")
	ErrLaneFull     = errors.New("session lane full")
)

type command struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

type lane struct {
	ch      chan *command
	pending int
}

// Lanes serializes work per session: every command for a session runs on
// that session's lane goroutine in FIFO order, while the semaphore limits
// how many lanes execute at once. Idle lanes exit and are recreated on
// demand. A command must not call Do for its own session.
type Lanes struct {
	lanes     map[string]*lane
	semaphore *semaphore.Weighted
	depth     int
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewLanes(maxConcurrent int64, depth int) *Lanes {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if depth < 1 {
		depth = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Lanes{
		lanes:     make(map[string]*lane),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		depth:     depth,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Stop rejects new commands and waits for running ones to finish.
func (l *Lanes) Stop() {
	l.cancel()
	l.wg.Wait()
}

// Do runs fn on the session's lane and returns its error.
func (l *Lanes) Do(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	cmd := &command{ctx: ctx, fn: fn, done: make(chan error, 1)}
	if err := l.enqueue(sessionID, cmd); err != nil {
		return err
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return ErrLanesStopped
	}
}

func (l *Lanes) enqueue(sessionID string, cmd *command) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx.Err() != nil {
		return ErrLanesStopped
	}

	ln, exists := l.lanes[sessionID]
	if !exists {
		ln = &lane{ch: make(chan *command, l.depth)}
		l.lanes[sessionID] = ln
		l.wg.Add(1)
		go l.processLane(sessionID, ln)
	}

	select {
	case ln.ch <- cmd:
		ln.pending++
		return nil
	default:
		return fmt.Errorf("%w: session %s", ErrLaneFull, sessionID)
	}
}

func (l *Lanes) processLane(sessionID string, ln *lane) {
	defer l.wg.Done()
	for {
		select {
		case cmd := <-ln.ch:
			l.run(sessionID, cmd)

			l.mu.Lock()
			ln.pending--
			if ln.pending == 0 {
				delete(l.lanes, sessionID)
				l.mu.Unlock()
				return
			}
			l.mu.Unlock()
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Lanes) run(sessionID string, cmd *command) {
	if err := cmd.ctx.Err(); err != nil {
		cmd.done <- err
		return
	}
	if err := l.semaphore.Acquire(l.ctx, 1); err != nil {
		cmd.done <- ErrLanesStopped
		return
	}
	defer l.semaphore.Release(1)

	l.active.Add(1)
	defer l.active.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			logger.Error.Printf("session %s: command panicked: %v", sessionID, r)
			cmd.done <- fmt.Errorf("command panicked: %v", r)
		}
	}()
	cmd.done <- cmd.fn(cmd.ctx)
}

// WaitIdle blocks until no command is running or the timeout expires.
func (l *Lanes) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if l.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
