package portfolio

import "fmt"

// RateLimitedError is returned when the indexer answers 429. Never retried.
type RateLimitedError struct {
	RetryAfter string
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("indexer rate limited, retry after %s", e.RetryAfter)
	}
	return "indexer rate limited"
}

// UnauthorizedError is returned when the indexer answers 401. Never retried
// — a bad API key doesn't become good key on the next attempt.
type UnauthorizedError struct{}

func (e *UnauthorizedError) Error() string { return "indexer rejected the API key" }

// TransportError wraps a network-level failure reaching the indexer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("indexer transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError is any other non-2xx indexer response.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("indexer upstream error: status=%d body=%s", e.StatusCode, e.Body)
}
