package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrValidation is the parent of every error returned synchronously to the
	// caller of a user-facing operation. State is left unchanged when one is
	// returned.
	ErrValidation = errors.New("validation failed")

	ErrInvalidTransition = fmt.Errorf("%w: invalid transition", ErrValidation)
	ErrSegmentNotFound   = fmt.Errorf("%w: segment not found", ErrValidation)
	ErrDuplicateSession  = fmt.Errorf("%w: session already active", ErrValidation)
	ErrUnknownStyle      = fmt.Errorf("%w: unknown caption style", ErrValidation)
	ErrInvalidMode       = fmt.Errorf("%w: invalid caption mode", ErrValidation)
	ErrInvalidEvent      = fmt.Errorf("%w: invalid event", ErrValidation)
)

// TransientError marks a job failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a job failure that no retry can fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient reports whether a job failure should be retried. The
// outermost explicit wrapper wins, deadlines are transient, then the
// message is inspected. Unknown errors are treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		switch e.(type) {
		case *PermanentError:
			return false
		case *TransientError:
			return true
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	msg := strings.ToLower(err.Error())

	for _, s := range []string{"connection refused", "connection reset", "timeout", "temporary failure", "rate limit", "resource busy"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	for _, s := range []string{"invalid data", "corrupt", "unsupported", "no such file", "invalid argument", "moov atom not found"} {
		if strings.Contains(msg, s) {
			return false
		}
	}

	return true
}
