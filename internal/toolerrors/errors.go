// Package toolerrors provides the structured error kinds the OME raises
// across tool invocation, agent turns, and snapshot persistence. Each error
// carries an optional chain of OMEError causes so errors.Is/As by Kind keep
// working across retries and across the tool-call/agent-turn boundary.
package toolerrors

import (
	"errors"
	"fmt"
)

// Kind identifies which of the closed set of failure categories an error
// belongs to.
type Kind string

const (
	KindToolNotFound     Kind = "tool_not_found"
	KindCircuitOpen      Kind = "circuit_open"
	KindToolTimeout      Kind = "tool_timeout"
	KindToolExecution    Kind = "tool_execution_error"
	KindAgentResponse    Kind = "agent_response_error"
	KindSnapshotNotFound Kind = "snapshot_not_found"
	KindSnapshotError    Kind = "snapshot_error"
	KindConfig           Kind = "config_error"
	KindOverflow         Kind = "overflow_error"
)

// OMEError is the structured error type returned by every OME component.
// Message is the human-readable summary; Cause chains to the underlying
// failure, letting errors.Is/As walk the full history.
type OMEError struct {
	Kind    Kind
	Message string
	Cause   *OMEError
}

// New constructs an OMEError of the given kind with no wrapped cause.
func New(kind Kind, message string) *OMEError {
	if message == "" {
		message = string(kind)
	}
	return &OMEError{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *OMEError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap constructs an OMEError of the given kind that wraps cause. cause is
// folded into an OMEError chain via FromError so the chain survives
// serialization; errors.Is/As walk that chain through Unwrap and match by
// OMEError Kind. A cause that is not an OMEError is kept only as its message
// (with Kind KindToolExecution), so errors.Is against the original error
// value, such as context.Canceled, does not match.
func Wrap(kind Kind, message string, cause error) *OMEError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &OMEError{Kind: kind, Message: message, Cause: FromError(cause)}
}

// FromError converts an arbitrary error into an OMEError chain, preserving
// an existing OMEError's Kind where possible.
func FromError(err error) *OMEError {
	if err == nil {
		return nil
	}
	var oe *OMEError
	if errors.As(err, &oe) {
		return oe
	}
	return &OMEError{Kind: KindToolExecution, Message: err.Error(), Cause: FromError(errors.Unwrap(err))}
}

// Error implements the error interface.
func (e *OMEError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

// Unwrap returns the wrapped cause, supporting errors.Is/As.
func (e *OMEError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an OMEError of the same Kind, so callers can
// write errors.Is(err, toolerrors.New(toolerrors.KindCircuitOpen, "")).
func (e *OMEError) Is(target error) bool {
	var oe *OMEError
	if !errors.As(target, &oe) {
		return false
	}
	return e.Kind == oe.Kind
}

// Retryable reports whether err is a kind the Retry Engine should re-attempt.
// The breaker fails immediately when open — CircuitOpen is never retryable —
// while genuine transport failures (timeout, execution error) are. Agent
// response errors are retryable only when the cause is a rate-limit signal
// (checked by callers via llm.ErrRateLimited before reaching here).
func Retryable(err error) bool {
	var oe *OMEError
	if !errors.As(err, &oe) {
		return false
	}
	switch oe.Kind {
	case KindToolTimeout, KindToolExecution:
		return true
	default:
		return false
	}
}
