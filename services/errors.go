package services

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) when an actor, item, story or notification is absent
var ErrNotFound = errors.New("not found")

// ErrStoreUnavailable wraps transient store failures
var ErrStoreUnavailable = errors.New("store unavailable")

// Stable policy violation codes
const (
	CodeVisibilityDenied      = "visibility_denied"
	CodeNotOwner              = "not_owner"
	CodeOneTimeViewConsumed   = "one_time_view_consumed"
	CodeMediaDurationExceeded = "media_duration_exceeded"
	CodeInvalidAction         = "invalid_action"
	CodeSelfAction            = "self_action"
	CodeBlocked               = "blocked"
)

// PolicyError is a rejection the caller should not retry
type PolicyError struct {
	Code    string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func policyError(code, format string, args ...any) error {
	return &PolicyError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
}

// IsPolicy reports whether err is a policy violation with the given code
func IsPolicy(err error, code string) bool {
	var pe *PolicyError
	return errors.As(err, &pe) && pe.Code == code
}
