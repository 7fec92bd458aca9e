package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error so handlers and callers can react
// without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPermission
	KindConflict
	KindNotFound
	KindExternal
)

// Error carries a Kind alongside the message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation: malformed input. Never retried.
func Validation(message string) error { return New(KindValidation, message) }

// Permission: role/tenant mismatch. Logged as a security-relevant event by callers.
func Permission(message string) error { return New(KindPermission, message) }

// Conflict: illegal state transition. Caller must refresh state before retrying.
func Conflict(message string) error { return New(KindConflict, message) }

// NotFound covers both genuinely absent records and records belonging to
// another tenant, so existence never leaks across tenants.
func NotFound(entity string) error { return New(KindNotFound, entity+" not found") }

// External: a collaborator (budget checker, audit engine) failed.
func External(message string, err error) error { return Wrap(KindExternal, message, err) }

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code handlers should respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
