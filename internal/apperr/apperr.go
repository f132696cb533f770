// Package apperr declares the error-kind taxonomy shared across the router
// core, following the teacher's habit of wrapping causes with
// github.com/pkg/errors rather than inventing a parallel error tree.
package apperr

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error for boundary handling: HTTP status, metrics
// counter, and whether the conversation controller should reply in-chat.
type Kind int

const (
	// Internal is the zero value so an unclassified error never accidentally
	// reads as something more specific (e.g. RateLimited).
	Internal Kind = iota
	InputValidation
	AuthNForbidden
	RateLimited
	TransientUpstream
	PermanentUpstream
	InvariantViolation
)

func (k Kind) String() string {
	switch k {
	case InputValidation:
		return "input_validation"
	case AuthNForbidden:
		return "authn_forbidden"
	case RateLimited:
		return "rate_limited"
	case TransientUpstream:
		return "transient_upstream"
	case PermanentUpstream:
		return "permanent_upstream"
	case InvariantViolation:
		return "invariant_violation"
	default:
		return "internal"
	}
}

// Error is a kind-tagged wrapper over an underlying cause.
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

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error of the given kind, wrapping cause (may be nil) with
// pkgerrors so a stack trace is attached the way the teacher's codebase
// attaches one to every non-boundary error.
func New(kind Kind, message string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = pkgerrors.Wrap(cause, message)
	}
	return &Error{Kind: kind, Message: message, Err: wrapped}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to Internal when err does not
// carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
