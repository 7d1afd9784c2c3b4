// Package apperr defines the error taxonomy shared by the session and
// membership services and its mapping to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUpstream Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	KindInvalidToken
	KindUnauthorizedAction
	KindUnauthenticated
	KindForbidden
	KindNotVerified
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindInvalidToken:
		return "invalid_token"
	case KindUnauthorizedAction:
		return "unauthorized_action"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotVerified:
		return "not_verified"
	default:
		return "upstream"
	}
}

// Error is a classified failure. Message is safe to show to clients for every
// kind except KindUpstream.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// InvalidToken wraps one of the token package's sentinel errors so callers can
// still tell expiry from signature failure with errors.Is.
func InvalidToken(msg string, cause error) *Error {
	return &Error{Kind: KindInvalidToken, Message: msg, Err: cause}
}

func UnauthorizedAction(msg string) *Error {
	return &Error{Kind: KindUnauthorizedAction, Message: msg}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotVerified(msg string) *Error {
	return &Error{Kind: KindNotVerified, Message: msg}
}

// Upstream marks a persistence, mail or hashing failure.
func Upstream(err error, msg string) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain. Unclassified
// errors are treated as upstream failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the message a client may see for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUpstream {
		return e.Message
	}
	return "internal error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindValidation, KindUnauthorizedAction:
		return http.StatusBadRequest
	case KindInvalidToken, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden, KindNotVerified:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
