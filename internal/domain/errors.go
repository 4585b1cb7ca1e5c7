package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error so the transport layer can map it to an HTTP
// status without inspecting message text.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindInvalidState    Kind = "invalid_state"
	KindNotFound        Kind = "not_found"
	KindDuplicate       Kind = "duplicate"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindRateLimited     Kind = "rate_limited"
	KindRetryableIO     Kind = "retryable_io"
	KindFatal           Kind = "fatal"
)

// Error is the error type produced everywhere inside the core. Workflows
// wrap repository and entity errors with it; the API layer maps Kind to a
// status code.
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

func (e *Error) Unwrap() error { return e.Err }

// E builds a new domain error of the given kind.
func E(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapErr attaches a kind and message to an underlying error.
func WrapErr(kind Kind, err error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err. Unclassified errors are treated as
// fatal (bug or misconfiguration per the error table).
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindFatal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
