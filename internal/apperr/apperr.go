// Package apperr defines the error taxonomy used across the service: every
// fallible operation returns either a success value or an *Error whose Kind
// maps to exactly one HTTP status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the fixed error categories the HTTP layer understands.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindNotFound             Kind = "not_found"
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindRateLimitExceeded    Kind = "rate_limit_exceeded"
	KindUploadSessionError   Kind = "upload_session_error"
	KindUnauthorized         Kind = "unauthorized"
	KindNotAuthorized        Kind = "not_authorized"
	KindTokenLocked          Kind = "token_locked"
	KindUpdateCooldown       Kind = "update_cooldown"
	KindInvalidSignature     Kind = "invalid_signature"
	KindInternal             Kind = "internal"
	KindIO                   Kind = "io"
	KindDatabase             Kind = "database"
	KindImageProcessing      Kind = "image_processing"
	KindConfig               Kind = "config"
)

var statusByKind = map[Kind]int{
	KindValidation:           http.StatusBadRequest,
	KindNotFound:             http.StatusNotFound,
	KindUnsupportedMediaType: http.StatusUnsupportedMediaType,
	KindPayloadTooLarge:      http.StatusRequestEntityTooLarge,
	KindRateLimitExceeded:    http.StatusTooManyRequests,
	KindUploadSessionError:   http.StatusBadRequest,
	KindUnauthorized:         http.StatusUnauthorized,
	KindNotAuthorized:        http.StatusForbidden,
	KindTokenLocked:          http.StatusForbidden,
	KindUpdateCooldown:       http.StatusTooManyRequests,
	KindInvalidSignature:     http.StatusBadRequest,
	KindInternal:             http.StatusInternalServerError,
	KindIO:                   http.StatusInternalServerError,
	KindDatabase:             http.StatusInternalServerError,
	KindImageProcessing:      http.StatusInternalServerError,
	KindConfig:               http.StatusInternalServerError,
}

// Error is the concrete error type returned from every fallible operation.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// RemainingSeconds is set on KindUpdateCooldown so the handler can
	// surface it without re-deriving it from the cause.
	RemainingSeconds int64
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus returns the status code this error's Kind maps to, defaulting
// to 500 for an unrecognized (zero-value) Kind.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsServerError reports whether this error's status is 5xx, which the HTTP
// layer uses to decide whether to redact the wire message.
func (e *Error) IsServerError() bool {
	return e.HTTPStatus() >= 500
}

// New constructs an *Error of the given kind with a plain message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to an underlying cause. If err is already
// an *Error it is returned unchanged so call sites can wrap defensively
// without double-tagging an error that already carries a kind.
func Wrap(err error, kind Kind, message string) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Of extracts the *Error from err, if any.
func Of(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := Of(err); ok {
		return e.Kind
	}
	return KindInternal
}
