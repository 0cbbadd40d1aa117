package service

import (
	"sync"

	"github.com/bnema/captioner/internal/domain"
)

type barrierKey struct {
	sessionID string
	status    domain.SegmentStatus
}

type barrier struct {
	total int
	seen  map[string]struct{}
	fired bool
}

// Barriers tracks, per session and watched status, which segments have
// reached that status. Arrivals are keyed by segment id so duplicates
// and reordering never change the outcome. A barrier fires once per arming.
type Barriers struct {
	mu sync.Mutex
	m  map[barrierKey]*barrier
}

func NewBarriers() *Barriers {
	return &Barriers{m: make(map[barrierKey]*barrier)}
}

// Arm (re)creates the barrier with an empty arrival set.
func (b *Barriers) Arm(sessionID string, status domain.SegmentStatus, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.m[barrierKey{sessionID, status}] = &barrier{
		total: total,
		seen:  make(map[string]struct{}, total),
	}
}

// Arrive records segmentID and returns true only on the arrival that
// completes the barrier. Arrivals on an unarmed barrier are ignored.
func (b *Barriers) Arrive(sessionID string, status domain.SegmentStatus, segmentID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	br, ok := b.m[barrierKey{sessionID, status}]
	if !ok || br.fired {
		return false
	}
	br.seen[segmentID] = struct{}{}
	if len(br.seen) < br.total {
		return false
	}
	br.fired = true
	return true
}

// Depart removes segmentID, re-arming a barrier that already fired.
func (b *Barriers) Depart(sessionID string, status domain.SegmentStatus, segmentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	br, ok := b.m[barrierKey{sessionID, status}]
	if !ok {
		return
	}
	delete(br.seen, segmentID)
	br.fired = false
}

func (b *Barriers) Count(sessionID string, status domain.SegmentStatus) (seen, total int, armed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	br, ok := b.m[barrierKey{sessionID, status}]
	if !ok {
		return 0, 0, false
	}
	return len(br.seen), br.total, true
}

// Disarm drops one barrier of the session.
func (b *Barriers) Disarm(sessionID string, status domain.SegmentStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.m, barrierKey{sessionID, status})
}

// Forget drops every barrier of the session.
func (b *Barriers) Forget(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k := range b.m {
		if k.sessionID == sessionID {
			delete(b.m, k)
		}
	}
}

// Seed arms the barrier with the segments already known to have reached
// the status and reports whether it is complete.
func (b *Barriers) Seed(sessionID string, status domain.SegmentStatus, total int, reached []string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	br := &barrier{total: total, seen: make(map[string]struct{}, total)}
	for _, id := range reached {
		br.seen[id] = struct{}{}
	}
	b.m[barrierKey{sessionID, status}] = br
	if total > 0 && len(br.seen) >= total {
		br.fired = true
	}
	return br.fired
}
