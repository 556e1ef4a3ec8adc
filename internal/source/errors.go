package source

import (
	"errors"
	"fmt"
)

// Sentinel errors for source operations.
var (
	// ErrNotConfigured indicates the source is missing the credentials
	// required for the requested operation.
	ErrNotConfigured = errors.New("source not configured")

	// ErrNotFound indicates the video or comment does not exist or is
	// not visible to the configured credentials.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx response from the platform API.
type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("source: HTTP %d (%s): %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("source: HTTP %d: %s", e.Status, e.Message)
}

// Retryable reports whether the request can be retried later: rate limits,
// exhausted quota, and server-side failures.
func (e *APIError) Retryable() bool {
	switch {
	case e.Status == 429:
		return true
	case e.Status == 403 && (e.Reason == "quotaExceeded" || e.Reason == "rateLimitExceeded"):
		return true
	case e.Status >= 500:
		return true
	}
	return false
}
