package core

import (
	"errors"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrUpstream   = errors.New("upstream error")
)

// Themed messages shown to clients.
const (
	MsgURLRequired     = "The spirits require a URL to summon..."
	MsgNoSnapshots     = "The spirits are silent. No snapshots found in the archives."
	MsgUpstreamFailure = "The connection to the past has been severed."
	MsgGhostFaded      = "This ghost has faded from memory..."
	MsgNoPersonality   = "This ghost has no voice left to speak with..."
	MsgInvalidPayload  = "The spirits cannot read this offering..."
)

// Error is the envelope returned by resurrection operations. Kind is one of
// the sentinel errors above, Message is safe to show to users and Err, when
// present, carries the underlying cause for diagnostics.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// NewError builds an error envelope of the given kind.
func NewError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: strings.TrimSpace(message), Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns the cause text, or "" when there is none.
func (e *Error) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Validation, NotFound and Upstream are shorthands for NewError.
func Validation(message string) *Error { return NewError(ErrValidation, message, nil) }

func NotFound(message string) *Error { return NewError(ErrNotFound, message, nil) }

func Upstream(message string, cause error) *Error {
	return NewError(ErrUpstream, message, cause)
}
