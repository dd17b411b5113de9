package llm

import (
	"errors"
	"fmt"
)

// APIError is a failed call to a chat completion API. Transient errors
// (network faults, rate limits, 5xx) are retried; fatal ones (auth, bad
// request) are not.
type APIError struct {
	Provider  string
	Status    int
	Transient bool
	Err       error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s API error (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient
}

// classifyStatus maps an HTTP status to retryability: rate limits and 5xx
// are transient, auth and client errors are fatal.
func classifyStatus(status int) bool {
	return status == 429 || status >= 500
}
