package prima

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnavailable = errors.New("prima: host unreachable or transport failure")
	ErrTimeout     = errors.New("prima: request timed out")
	ErrStatus      = errors.New("prima: unexpected upstream status")
	ErrBadResponse = errors.New("prima: invalid response format or malformed data")
)

// APIError wraps the sentinel errors with request context for diagnostics.
// The Body snippet is for logs only and is never shown to end users.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("prima: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}
