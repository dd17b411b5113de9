package conversation

import (
	"errors"
	"fmt"
)

// NotFoundError reports an unknown session id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.ID)
}

// ExpiredError reports a session that timed out. The id is still known for a
// grace period after expiry, so callers can distinguish "gone" from "never
// existed".
type ExpiredError struct {
	ID string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("session %s has expired", e.ID)
}

// NotActiveError reports a mutation attempted against a session whose status
// no longer permits it. It carries the current status.
type NotActiveError struct {
	ID     string
	Status Status
}

func (e *NotActiveError) Error() string {
	return fmt.Sprintf("session %s is not active (status: %s)", e.ID, e.Status)
}

// UpstreamError reports a failed chat provider call. The turn is retryable:
// the session stays Active and nothing was merged.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("chat provider call failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a session-not-found error.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsExpired reports whether err is a session-expired error.
func IsExpired(err error) bool {
	var target *ExpiredError
	return errors.As(err, &target)
}

// IsNotActive reports whether err is a session-not-active error.
func IsNotActive(err error) bool {
	var target *NotActiveError
	return errors.As(err, &target)
}

// IsUpstream reports whether err is a chat provider failure.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}
