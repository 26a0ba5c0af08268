// Package apperr defines the tagged error taxonomy shared across the
// gateway. Components return one of these kinds instead of raw errors so
// callers can branch on Kind rather than matching error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind labels the category of failure.
type Kind string

const (
	InvalidAddress           Kind = "invalid_address"
	InvalidParameter         Kind = "invalid_parameter"
	NoHealthyEndpoint        Kind = "no_healthy_endpoint"
	ContractCallFailed       Kind = "contract_call_failed"
	UpstreamError            Kind = "upstream_error"
	RateLimited              Kind = "rate_limited"
	Unauthorized             Kind = "unauthorized"
	Transport                Kind = "transport"
	PersistentCacheReadError Kind = "persistent_cache_read_error"
	PersistentCacheWriteError Kind = "persistent_cache_write_error"
	DecryptFailure           Kind = "decrypt_failure"
	MalformedSubmission      Kind = "malformed_submission"
	Blacklisted              Kind = "blacklisted"
	Internal                 Kind = "internal"
)

// Error wraps an underlying cause with a Kind so the HTTP boundary and the
// Enrichment Engine can make routing/retry decisions without parsing
// messages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an Error of the given kind around an existing error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, or Internal if err is not a tagged Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the status-shape spec.md §7 calls for.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidAddress, InvalidParameter, MalformedSubmission, DecryptFailure:
		return 400
	case Unauthorized:
		return 401
	case RateLimited:
		return 429
	case Blacklisted:
		return 403
	case NoHealthyEndpoint, ContractCallFailed, UpstreamError, Transport,
		PersistentCacheReadError, PersistentCacheWriteError:
		return 503
	default:
		return 500
	}
}
