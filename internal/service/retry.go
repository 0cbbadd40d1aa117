package service

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/bnema/captioner/internal/domain"
)

// RetryPolicy decides whether a failed job attempt runs again and when.
// Delays grow by Multiplier per attempt from InitialDelay up to MaxDelay.
// Jitter in [0, 1) shortens each delay by up to that fraction so sibling
// segments that failed together do not retry in lockstep.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
		Jitter:       0.5,
	}
}

// ShouldRetry reports whether attempt (the one that just failed) may be
// followed by another.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	return domain.IsTransient(err)
}

// NextDelay returns the wait after the given failed attempt (1-indexed).
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	delay := float64(p.InitialDelay)
	if attempt > 1 && p.Multiplier > 1 {
		delay *= math.Pow(p.Multiplier, float64(attempt-1))
	}
	if p.MaxDelay > 0 {
		delay = math.Min(delay, float64(p.MaxDelay))
	}
	if p.Jitter > 0 {
		delay *= 1 - rand.Float64()*math.Min(p.Jitter, 1)
	}
	return time.Duration(delay)
}
