package workflow

import (
	"errors"
	"fmt"
)

// ErrorKind is a string type used for structured error classification across
// the step handlers. Using a custom type ensures only the predefined
// constants can appear where an ErrorKind is expected.
type ErrorKind string

const (
	// ErrInvalidParam marks a malformed or missing step parameter. These are
	// detected before the browser effect is attempted.
	ErrInvalidParam ErrorKind = "INVALID_PARAM"
	// ErrActionNotFound marks a step whose action name is not registered.
	ErrActionNotFound ErrorKind = "ACTION_NOT_FOUND"
	// ErrNetwork marks a navigation failure (target unreachable, DNS, TLS).
	ErrNetwork ErrorKind = "NETWORK_ERROR"
	// ErrFileNotFound marks a missing upload source file.
	ErrFileNotFound ErrorKind = "FILE_NOT_FOUND"
	// ErrPersistence marks a cookie or screenshot write failure.
	ErrPersistence ErrorKind = "PERSISTENCE_ERROR"
	// ErrSession marks a browser launch or session-level failure. Usually
	// fatal for the run.
	ErrSession ErrorKind = "SESSION_ERROR"
)

// Error carries an ErrorKind alongside the underlying cause so callers can
// classify failures with errors.As while %w chains stay intact.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a classification kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Errorf is the fmt.Errorf analogue for classified errors.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the classification of err, or an empty kind when err does
// not carry one anywhere in its chain.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}
