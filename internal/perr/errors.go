// Package perr defines the error taxonomy shared by every engine component.
//
// Errors carry a Kind (used to pick an HTTP-class status at the edge, which
// is out of scope here), a stable machine-readable Code, and a user-safe
// Message. The wrapped cause is preserved for logging but is never rendered
// in Error() output that might reach a caller across a trust boundary.
package perr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error per spec.md §7.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindAuthz         Kind = "authorization"
	KindInput         Kind = "input"
	KindConflict      Kind = "conflict"
	KindIO            Kind = "io"
	KindBackend       Kind = "backend"
	KindUpstream      Kind = "upstream"
	KindPartial       Kind = "partial"
)

// Error is the engine's structured error type.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind) + ": " + e.Code
}

// Unwrap exposes the wrapped cause for errors.Is/As, but the cause itself is
// redacted out of Error() so internal details never leak to a caller.
func (e *Error) Unwrap() error { return e.cause }

// Cause returns the wrapped internal error, for logging only.
func (e *Error) Cause() error { return e.cause }

func newErr(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

func NotFound(code, message string) *Error { return newErr(KindNotFound, code, message, nil) }

func Authz(code, message string) *Error { return newErr(KindAuthz, code, message, nil) }

func Input(code, message string) *Error { return newErr(KindInput, code, message, nil) }

func Conflict(code, message string) *Error { return newErr(KindConflict, code, message, nil) }

func Configuration(code, message string) *Error {
	return newErr(KindConfiguration, code, message, nil)
}

// IO wraps a storage-layer error. The cause is logged but not surfaced.
func IO(code string, cause error) *Error {
	return newErr(KindIO, code, "storage operation failed", cause)
}

// Backend wraps a tokenizer/HNSW/graph failure. The cause is logged but not
// surfaced.
func Backend(code string, cause error) *Error {
	return newErr(KindBackend, code, "backend operation failed", cause)
}

// Upstream wraps an embedding-provider or peer-RPC failure.
func Upstream(code string, cause error) *Error {
	return newErr(KindUpstream, code, "upstream call failed", cause)
}

// Partial marks a federated response that only partially succeeded. It is
// informational, not necessarily surfaced as a request failure.
func Partial(code, message string) *Error { return newErr(KindPartial, code, message, nil) }

// KindOf extracts the Kind from err, defaulting to "" if err isn't (or
// doesn't wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is a *perr.Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Wrap attaches additional context to err while preserving its Kind/Code if
// it is already a *perr.Error; otherwise it is wrapped as an io error.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		wrapped := *e
		wrapped.cause = fmt.Errorf("%s: %w", context, e.cause)
		return &wrapped
	}
	return IO("wrapped", fmt.Errorf("%s: %w", context, err))
}
