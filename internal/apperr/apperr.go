// Package apperr defines the typed errors returned by the auth services and the
// HTTP status each kind maps to. Handlers translate them at the boundary; anything
// that is not an *Error is treated as an infrastructure fault.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindWrongStep
	KindNotFound
	KindConflict
	KindPolicy
	KindRateLimited
	KindDelivery
	KindUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:     "internal",
	KindValidation:   "validation",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindWrongStep:    "wrong_step",
	KindNotFound:     "not_found",
	KindConflict:     "conflict",
	KindPolicy:       "policy",
	KindRateLimited:  "rate_limited",
	KindDelivery:     "delivery",
	KindUnavailable:  "unavailable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindWrongStep:
		return http.StatusMethodNotAllowed
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPolicy:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDelivery:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a client-safe message.
type Error struct {
	Kind       Kind
	Message    string
	Fields     []string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error.
func (e *Error) Status() int { return e.Kind.Status() }

// Is reports whether target is an *Error of the same kind. It lets callers write
// errors.Is(err, &apperr.Error{Kind: apperr.KindConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind Kind, msg string, fields []string) *Error {
	return &Error{Kind: kind, Message: msg, Fields: fields}
}

// Validation returns a 400 error for malformed or missing input.
func Validation(msg string, fields ...string) *Error { return newError(KindValidation, msg, fields) }

// Unauthorized returns a 401 error for missing, invalid or expired proof.
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg, nil) }

// Forbidden returns a 403 error for an authenticated caller without the required role.
func Forbidden(msg string) *Error { return newError(KindForbidden, msg, nil) }

// WrongStep returns a 405 error for a caller that is at the wrong registration stage.
func WrongStep(msg string) *Error { return newError(KindWrongStep, msg, nil) }

// NotFound returns a 404 error.
func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

// Conflict returns a 409 error.
func Conflict(msg string, fields ...string) *Error { return newError(KindConflict, msg, fields) }

// Policy returns a 422 error for a policy rejection.
func Policy(msg string, fields ...string) *Error { return newError(KindPolicy, msg, fields) }

// RateLimited returns a 429 error carrying how long the caller should wait.
func RateLimited(msg string, retryAfter time.Duration) *Error {
	e := newError(KindRateLimited, msg, nil)
	e.RetryAfter = retryAfter
	return e
}

// Delivery returns a 502 error for a committed operation whose outbound mail failed.
func Delivery(msg string, cause error) *Error {
	e := newError(KindDelivery, msg, nil)
	e.Err = cause
	return e
}

// Unavailable returns a 503 error for a dependency that is temporarily unreachable.
func Unavailable(msg string, cause error) *Error {
	e := newError(KindUnavailable, msg, nil)
	e.Err = cause
	return e
}

// Internal wraps an unexpected failure.
func Internal(msg string, cause error) *Error {
	e := newError(KindInternal, msg, nil)
	e.Err = cause
	return e
}

// As returns err as an *Error if it is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
