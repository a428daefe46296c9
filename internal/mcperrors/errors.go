// Package mcperrors names the error taxonomy shared across the
// connection manager, session, and tool dispatcher, so the dispatcher
// can pattern-match on error kind instead of parsing messages.
package mcperrors

import "errors"

// Kind classifies an error for dispatcher-level handling.
type Kind string

const (
	KindNotConnected        Kind = "NotConnectedToMongoDB"
	KindMisconfiguredString Kind = "MisconfiguredConnectionString"
	KindForbiddenCollscan   Kind = "ForbiddenCollscan"
	KindForbiddenWriteOp    Kind = "ForbiddenWriteOperation"
	KindOIDCPending         Kind = "OIDCAuthenticationPending"
)

// Error is a taxonomy-tagged error. Message is shown to the agent;
// Hint, when set, is appended as additional guidance (e.g. the collscan
// suggestion text, or an OIDC verification URL).
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func WithHint(kind Kind, message, hint string) *Error {
	return &Error{Kind: kind, Message: message, Hint: hint}
}

// Is reports whether err (or anything it wraps) carries kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
