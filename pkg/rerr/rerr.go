// Package rerr defines the error taxonomy shared by every layer of the
// repository. It mirrors the way cuemby-warren wraps errors with
// fmt.Errorf("...: %w", err) but adds a Kind so callers at the edge (the CLI,
// an eventual HTTP surface) can map failures onto a small set of canonical
// response codes without inspecting error strings.
package rerr

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy of error kinds from spec §7. It is not a Go error
// type hierarchy; it is carried alongside a wrapped error so the kind
// survives fmt.Errorf wrapping.
type Kind string

const (
	InvalidArgument Kind = "invalid_argument"
	NotFound        Kind = "not_found"
	Unauthorized    Kind = "unauthorized"
	Conflict        Kind = "conflict"
	Governance      Kind = "governance"
	Storage         Kind = "storage"
	Policy          Kind = "policy"
	Internal        Kind = "internal"
)

// Code is the canonical response code a Kind maps to.
type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"
	CodeInternal         Code = "INTERNAL"
)

// Error is a taxonomy-tagged error. Use New or Wrap to construct one;
// use errors.As to recover the Kind from an error chain.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// New constructs a taxonomy error from a message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, err: errors.New(msg)}
}

// Newf constructs a taxonomy error from a formatted message.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, err: fmt.Errorf(format, args...)}
}

// Wrap tags an existing error with a Kind and operation name. Wrap(nil, ...)
// returns nil so it composes with the usual `if err := ...; err != nil`
// pattern.
func Wrap(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: err}
}

// KindOf extracts the Kind from an error chain, defaulting to Internal when
// the error was never tagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// CodeOf maps an error's Kind onto the canonical response code from spec §7.
func CodeOf(err error) Code {
	switch KindOf(err) {
	case InvalidArgument:
		return CodeInvalidArgument
	case NotFound:
		return CodeNotFound
	case Unauthorized:
		return CodePermissionDenied
	case Conflict:
		return CodeResourceExhausted
	case Governance:
		return CodePermissionDenied
	case Policy:
		return CodeInvalidArgument
	case Storage, Internal:
		return CodeInternal
	default:
		return CodeInternal
	}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
