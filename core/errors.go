package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrNotSupported         = errors.New("operation not supported by backend")
	ErrInvalidToken         = errors.New("invalid token")
	ErrStoreOperationFailed = errors.New("store operation failed")
)

// Kind classifies a broker error
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindUnauthenticated Kind = "unauthenticated"
	KindAuthorization   Kind = "authorization_error"
	KindPrecondition    Kind = "precondition_error"
	KindUpstream        Kind = "upstream_error"
	KindTransient       Kind = "transient_error"
	KindInternal        Kind = "internal_error"
)

// Error is the structured error returned by every broker operation
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int   // HTTP status to report; zero means derive from Kind
	Err     error // Underlying cause, never shown to callers
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status class associated with the error
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindPrecondition:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry the same request
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func Unauthenticated(op string) *Error {
	return &Error{Kind: KindUnauthenticated, Op: op, Message: "authentication required"}
}

func Forbidden(op, message string) *Error {
	return &Error{Kind: KindAuthorization, Op: op, Message: message}
}

func Precondition(op, message string) *Error {
	return &Error{Kind: KindPrecondition, Op: op, Message: message}
}

// Upstream forwards the backend's status and message verbatim
func Upstream(op string, status int, message string) *Error {
	return &Error{Kind: KindUpstream, Op: op, Message: message, Status: status}
}

func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Message: "custodial backend unavailable, retry later", Err: err}
}

func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}

// KindOf returns the Kind of err, or KindInternal for errors outside the taxonomy
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// WithOp returns err re-labelled with op when it is a broker error, otherwise wraps it as internal
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Op = op
		return &cp
	}
	return Internal(op, err)
}
