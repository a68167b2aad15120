// Package memexerr defines the closed error taxonomy shared by every layer
// of the engine, from the storage driver up through the public API.
package memexerr

import (
	"errors"
	"fmt"
)

// Kind is one of a fixed set of error categories. Callers across the FFI and
// REST boundary switch on Kind rather than parsing messages.
type Kind string

const (
	Invalid       Kind = "Invalid"
	NotFound      Kind = "NotFound"
	QuotaExceeded Kind = "QuotaExceeded"
	RateLimited   Kind = "RateLimited"
	Busy          Kind = "Busy"
	Timeout       Kind = "Timeout"
	Corrupt       Kind = "Corrupt"
	IO            Kind = "IO"
	BadConfig     Kind = "BadConfig"
)

// Error is the typed error every public operation returns. It wraps an
// optional cause so %w chains still work with errors.Is/errors.As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that carries an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf extracts the Kind from err, or "" if err is not (and does not wrap)
// a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// codeOrder fixes the Kind-to-integer-code mapping get_last_error and
// error_message use at the FFI boundary, where callers cannot carry a
// typed error across the language boundary. 0 means "no error".
var codeOrder = []Kind{Invalid, NotFound, QuotaExceeded, RateLimited, Busy, Timeout, Corrupt, IO, BadConfig}

// Code returns kind's stable FFI error code, or 0 if kind is empty (no
// error) or unrecognized.
func Code(kind Kind) int {
	for i, k := range codeOrder {
		if k == kind {
			return i + 1
		}
	}
	return 0
}

// Message returns the human-readable name for an FFI error code, the
// counterpart callers use to implement error_message(code) without a typed
// Kind in hand.
func Message(code int) string {
	if code <= 0 || code > len(codeOrder) {
		return "Unknown"
	}
	return string(codeOrder[code-1])
}
