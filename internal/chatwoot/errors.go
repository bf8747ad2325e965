package chatwoot

import "fmt"

// AuthError indicates the access token was rejected (HTTP 401). It is fatal
// for the whole run and is never retried.
type AuthError struct {
	Endpoint string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: check CHATWOOT_ACCESS_TOKEN", e.Endpoint)
}

// HTTPError is a non-auth HTTP failure that survived the retry budget.
type HTTPError struct {
	Endpoint string
	Status   int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s after retries", e.Status, e.Endpoint)
}

// TimeoutError is a request that timed out on every attempt.
type TimeoutError struct {
	Endpoint string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after retries", e.Endpoint)
}

// TransportError is a network-level failure that survived the retry budget.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
