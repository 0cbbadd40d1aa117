package ratelimit

import (
	"sync"
	"time"
)

type AttemptRecord struct {
	Count        int
	LastAttempt  time.Time
	BlockedUntil time.Time
}

// FailureLimiter blocks a client after too many failed authentications
// within a window. Successful requests are never counted.
type FailureLimiter struct {
	mu             sync.Mutex
	attempts       map[string]*AttemptRecord
	maxFailures    int
	windowDuration time.Duration
	blockDuration  time.Duration
	now            func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func NewFailureLimiter(maxFailures int, windowDuration, blockDuration time.Duration) *FailureLimiter {
	limiter := &FailureLimiter{
		attempts:       make(map[string]*AttemptRecord),
		maxFailures:    maxFailures,
		windowDuration: windowDuration,
		blockDuration:  blockDuration,
		now:            time.Now,
		stop:           make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

// Blocked reports whether the client is blocked and for how long.
func (r *FailureLimiter) Blocked(clientID string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.attempts[clientID]
	if !ok {
		return false, 0
	}
	now := r.now()
	if now.Before(record.BlockedUntil) {
		return true, record.BlockedUntil.Sub(now)
	}
	return false, 0
}

// Fail records a failed attempt and returns true when the client just
// became blocked.
func (r *FailureLimiter) Fail(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	record, ok := r.attempts[clientID]
	if !ok {
		record = &AttemptRecord{}
		r.attempts[clientID] = record
	}
	if now.Sub(record.LastAttempt) > r.windowDuration {
		record.Count = 0
	}

	record.Count++
	record.LastAttempt = now

	if record.Count >= r.maxFailures {
		record.BlockedUntil = now.Add(r.blockDuration)
		record.Count = 0
		return true
	}
	return false
}

func (r *FailureLimiter) Reset(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attempts, clientID)
}

func (r *FailureLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *FailureLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.prune()
		}
	}
}

func (r *FailureLimiter) prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for clientID, record := range r.attempts {
		if now.Sub(record.LastAttempt) > r.windowDuration*2 && now.After(record.BlockedUntil) {
			delete(r.attempts, clientID)
		}
	}
}
