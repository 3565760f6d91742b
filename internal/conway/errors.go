package conway

import (
	"errors"
	"fmt"
)

// APIError represents a non-2xx response from the Conway API. It carries the
// request method and path plus the raw response body so callers can build
// provider-aware error messages.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("conway api %s %s failed with status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("conway api %s %s failed with status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// TimeoutError reports that a sandbox never reached the running state, either
// because the wait deadline elapsed or because the sandbox entered the error
// state during creation.
type TimeoutError struct {
	SandboxID string
	Reason    string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("conway sandbox %s: %s", e.SandboxID, e.Reason)
}

// FormatError renders any pipeline error into a human-readable message,
// expanding Conway API errors into method, path, status and body.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("Conway API %s %s → %d: %s", apiErr.Method, apiErr.Path, apiErr.Status, apiErr.Body)
	}
	return err.Error()
}
