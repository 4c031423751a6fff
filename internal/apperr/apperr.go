// Package apperr defines the error taxonomy shared by every request
// boundary. Handlers discriminate on Kind instead of matching error
// strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	// Internal is the fallback for unclassified failures.
	Internal Kind = iota
	// Unauthenticated covers missing, invalid or expired credentials and
	// unknown identities.
	Unauthenticated
	// Forbidden is a valid identity lacking a required role.
	Forbidden
	// InvalidSignature is a payment confirmation that failed the HMAC check.
	InvalidSignature
	// Conflict is a duplicate payment confirmation; an idempotent no-op.
	Conflict
	// UpstreamUnavailable is an unreachable or timed-out store, database or
	// gateway. It is the only kind callers should retry.
	UpstreamUnavailable
	// Validation is a malformed request body.
	Validation
	// NotFound is a referenced order, product or identity that is absent.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case InvalidSignature:
		return "invalid_signature"
	case Conflict:
		return "conflict"
	case UpstreamUnavailable:
		return "upstream_unavailable"
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error carries a kind, a caller-safe message, and an optional wrapped
// cause. The cause is for logs only and is never serialized to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an Error with the given kind and message wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf reports the Kind of err, or Internal if err carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the caller-safe message for err. Unclassified
// errors collapse to a generic message so internals never leak.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
