// Package apperr defines the error kinds surfaced by the course service and
// their mapping to HTTP responses.
package apperr

import (
	"errors"
	"net/http"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthProvider
	KindStorage
	KindUnavailable
	KindUnauthorized
	KindNotFound
)

// Sentinels for errors.Is checks against a kind.
var (
	ErrValidation   = errors.New("validation failed")
	ErrAuthProvider = errors.New("identity provider failure")
	ErrStorage      = errors.New("storage failure")
	ErrUnavailable  = errors.New("store unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// Error carries a kind, the failing operation and a client-safe message.
// Err is logged, never rendered.
type Error struct {
	Kind   Kind
	Op     string
	Public string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op
	if msg != "" {
		msg += ": "
	}
	msg += e.Public
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrAuthProvider:
		return e.Kind == KindAuthProvider
	case ErrStorage:
		return e.Kind == KindStorage
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

func Validation(op, public string) *Error {
	return &Error{Kind: KindValidation, Op: op, Public: public}
}

func AuthProvider(op string, err error) *Error {
	return &Error{Kind: KindAuthProvider, Op: op, Public: "authentication failed", Err: err}
}

func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Public: "storage failure", Err: err}
}

func Unavailable(op string) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Public: "database unavailable"}
}

func Unauthorized(op string) *Error {
	return &Error{Kind: KindUnauthorized, Op: op, Public: "unauthorized"}
}

func NotFound(op, public string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Public: public}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Status maps err to an HTTP status code. Unknown errors are 500.
func Status(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message that may be shown to a client.
func Public(err error) string {
	if e, ok := As(err); ok && e.Public != "" {
		return e.Public
	}
	return "internal error"
}
