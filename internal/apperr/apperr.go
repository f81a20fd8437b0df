// Package apperr defines the error taxonomy shared by every arenaswap
// component. Low-level codec, SQL and network errors are converted into an
// *Error at the component boundary so commands can report them uniformly.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindVersionMismatch Kind = "version_mismatch"
	KindConstraint      Kind = "constraint"
	KindIO              Kind = "io"
	KindNetwork         Kind = "network"
	KindValidation      Kind = "validation"
	KindFormat          Kind = "format"
)

// Error carries a Kind, a human message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap allows errors.Is and errors.As to walk the cause chain.
func (e *Error) Unwrap() error { return e.Cause }

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NotFound reports a missing bundle, texture or card row.
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, nil, format, args...)
}

// VersionMismatch reports a container that could not be decoded even after
// the fallback version retry.
func VersionMismatch(cause error, format string, args ...any) *Error {
	return newf(KindVersionMismatch, cause, format, args...)
}

// Constraint reports a uniqueness violation raised by the card store.
func Constraint(cause error, format string, args ...any) *Error {
	return newf(KindConstraint, cause, format, args...)
}

// IO reports a locked or unwritable file.
func IO(cause error, format string, args ...any) *Error {
	return newf(KindIO, cause, format, args...)
}

// Network reports a failed catalog request.
func Network(cause error, format string, args ...any) *Error {
	return newf(KindNetwork, cause, format, args...)
}

// Validation reports malformed user input or a malformed changeset.
func Validation(cause error, format string, args ...any) *Error {
	return newf(KindValidation, cause, format, args...)
}

// Format reports an image or payload that could not be decoded.
func Format(cause error, format string, args ...any) *Error {
	return newf(KindFormat, cause, format, args...)
}

// As extracts the *Error from err's chain. It returns nil if not found.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	ae := As(err)
	return ae != nil && ae.Kind == kind
}
