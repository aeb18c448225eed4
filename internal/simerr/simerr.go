// Package simerr defines the typed failures returned by simulation commands.
// A rejected command never leaves partial state behind; callers branch on
// the sentinel with errors.Is.
package simerr

import (
	"errors"
	"fmt"
)

// Failure kinds.
var (
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrInsufficientResources = errors.New("insufficient resources")
	ErrInvalidTarget         = errors.New("invalid target")
	ErrAlreadyInProgress     = errors.New("already in progress")
	ErrAlreadyClaimed        = errors.New("already claimed")
	ErrMaxLevel              = errors.New("maximum level reached")
	ErrNotFound              = errors.New("not found")
)

// Rejection records which command failed and why.
type Rejection struct {
	Op     string // Command name, e.g. "fleet.travel"
	Err    error  // One of the sentinels above
	Detail string // Human-readable context
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("%s: %v", r.Op, r.Err)
	}
	return fmt.Sprintf("%s: %v: %s", r.Op, r.Err, r.Detail)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Reject builds a Rejection for op wrapping kind.
func Reject(op string, kind error, format string, args ...any) error {
	return &Rejection{Op: op, Err: kind, Detail: fmt.Sprintf(format, args...)}
}

// Reason returns a stable short code for err, or "" if err is not a simulation failure.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_state_transition"
	case errors.Is(err, ErrInsufficientResources):
		return "insufficient_resources"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrAlreadyInProgress):
		return "already_in_progress"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrMaxLevel):
		return "max_level"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return ""
}
