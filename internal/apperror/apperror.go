// Package apperror defines the typed error kinds that cross component
// boundaries, and the HTTP status each maps to. Status codes are derived
// from them in one place (httpserver.RespondTypedError); other layers
// return or wrap them, and a few check the Kind to branch on it (for
// example on KindNotFound).
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the error kinds that crosses an HTTP boundary.
type Kind string

const (
	KindAuthMissing Kind = "auth_missing"
	KindAuthInvalid Kind = "auth_invalid"
	KindForbidden Kind = "forbidden"
	KindValidationFailed Kind = "validation_failed"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindRateLimited Kind = "rate_limited"
	KindCredentialMissing Kind = "credential_missing"
	KindDownstreamUnavail Kind = "downstream_unavailable"
	KindDownstreamError Kind = "downstream_error"
	KindConflict Kind = "conflict"
	KindNotFound Kind = "not_found"
	KindValueError Kind = "value_error"
	KindInternal Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindAuthMissing: http.StatusUnauthorized,
	KindAuthInvalid: http.StatusUnauthorized,
	KindForbidden: http.StatusForbidden,
	KindValidationFailed: http.StatusBadRequest,
	KindPayloadTooLarge: http.StatusRequestEntityTooLarge,
	KindRateLimited: http.StatusTooManyRequests,
	KindCredentialMissing: http.StatusServiceUnavailable,
	KindDownstreamUnavail: http.StatusServiceUnavailable,
	KindDownstreamError: http.StatusBadGateway,
	KindConflict: http.StatusConflict,
	KindNotFound: http.StatusNotFound,
	KindValueError: http.StatusBadRequest,
	KindInternal: http.StatusInternalServerError,
}

// HTTPError is a typed error that propagates verbatim through the pipeline:
// it is never rewrapped as a 500.
type HTTPError struct {
	Kind Kind
	Message string
	// Field carries the JSONPath of the first offending field for
	// validation errors.
	Field string
	// RetryAfterSeconds is set for KindRateLimited responses.
	RetryAfterSeconds int
	err error
}

func (e *HTTPError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.err }

// Status returns the HTTP status code this error maps to.
func (e *HTTPError) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates an HTTPError of the given kind with a message.
func New(kind Kind, message string) *HTTPError {
	return &HTTPError{Kind: kind, Message: message}
}

// Wrap creates an HTTPError of the given kind wrapping an underlying error.
// The underlying error's text is never exposed to the client; it is only
// available via Unwrap for server-side logging.
func Wrap(kind Kind, message string, err error) *HTTPError {
	return &HTTPError{Kind: kind, Message: message, err: err}
}

// WithField attaches a JSONPath to a validation error.
func (e *HTTPError) WithField(path string) *HTTPError {
	e.Field = path
	return e
}

// WithRetryAfter attaches a Retry-After duration (seconds) to a rate-limit error.
func (e *HTTPError) WithRetryAfter(seconds int) *HTTPError {
	e.RetryAfterSeconds = seconds
	return e
}

// As reports whether err is an *HTTPError, the same convention errors.As uses.
func As(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// NotFound, Conflict, StoreUnavailable are the Store-layer error
// constructors.
func NotFound(message string) *HTTPError { return New(KindNotFound, message) }
func Conflict(message string) *HTTPError { return New(KindConflict, message) }
func ValueError(message string) *HTTPError { return New(KindValueError, message) }
func StoreUnavailable(err error) *HTTPError {
	return Wrap(KindDownstreamUnavail, "store unavailable", err)
}
