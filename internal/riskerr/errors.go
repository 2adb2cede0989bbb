// Package riskerr defines the error taxonomy shared by the risk engine.
package riskerr

import (
	"errors"
	"fmt"
)

// Kind categorizes an engine error.
type Kind string

// Error kinds.
const (
	// KindDataUnavailable: a collaborator fetch failed or timed out. Degrades a
	// signal to unknown confidence, never aborts an evaluation.
	KindDataUnavailable Kind = "data_unavailable"
	// KindInsufficientEvidence: sample size below a detector minimum. No signal.
	KindInsufficientEvidence Kind = "insufficient_evidence"
	// KindConfiguration: invalid or missing policy value. Fatal at startup.
	KindConfiguration Kind = "configuration"
	// KindInvariantViolation: programming defect. Logged and clamped.
	KindInvariantViolation Kind = "invariant_violation"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrDataUnavailable      = &Error{Kind: KindDataUnavailable}
	ErrInsufficientEvidence = &Error{Kind: KindInsufficientEvidence}
	ErrConfiguration        = &Error{Kind: KindConfiguration}
	ErrInvariantViolation   = &Error{Kind: KindInvariantViolation}
)

// Collaborator causes, wrapped inside DataUnavailable errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrRPCUnavailable = errors.New("rpc unavailable")
)

// ErrInvalidInput rejects a request before any evaluation starts.
var ErrInvalidInput = errors.New("invalid input")

// Error is a categorized engine error.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "get_token"
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// DataUnavailable wraps a collaborator failure.
func DataUnavailable(op string, cause error) *Error {
	return &Error{Kind: KindDataUnavailable, Op: op, Cause: cause}
}

// InsufficientEvidence reports a sample below the detector minimum.
func InsufficientEvidence(op string, have, need int) *Error {
	return &Error{
		Kind:    KindInsufficientEvidence,
		Op:      op,
		Message: fmt.Sprintf("have %d samples, need %d", have, need),
	}
}

// Configuration reports an invalid policy value.
func Configuration(key, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Op: key, Message: fmt.Sprintf(format, args...)}
}

// InvariantViolation reports a programming defect.
func InvariantViolation(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvariantViolation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
