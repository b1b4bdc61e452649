package recipegen

import (
	"fmt"
	"net/http"
)

// UpstreamTimeoutError means the generation service did not answer within
// the configured timeout.
type UpstreamTimeoutError struct {
	Err error
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("recipe service timed out: %v", e.Err)
}

func (e *UpstreamTimeoutError) Unwrap() error { return e.Err }

// UpstreamError is a transport failure or a non-2xx answer. Status is zero
// when no response was received.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("recipe service unreachable: %v", e.Err)
	}
	return fmt.Sprintf("recipe service responded %d %s", e.Status, http.StatusText(e.Status))
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Retryable reports whether the upstream asked the caller to back off.
func (e *UpstreamError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable
}

// MalformedResponseError is a 2xx answer whose body is not a JSON object.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "recipe service returned a malformed response: " + e.Reason
}
