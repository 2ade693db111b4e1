package marathon

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the orchestrator.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// Retryable classifies a client fault for the verification retry loop.
//
// Network-level faults (timeouts, refused connections) and 5xx responses
// are transient: the cluster may be electing a leader or restarting, so the
// probe is worth another attempt. A 4xx is a definitive rejection of the
// request itself and aborts verification immediately rather than burning
// the retry budget, with two HTTP-semantics exceptions: 408 (the server
// timed the request out) and 429 (backpressure) are transient.
func Retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode >= 500:
			return true
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}
	// Anything that never reached the server, or failed in transit.
	return true
}
