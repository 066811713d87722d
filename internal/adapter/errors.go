package adapter

import (
	"errors"
	"fmt"
	"time"
)

// Error is the error type returned by sessions and factories.
//
// Codes map to how a run reacts:
//   - CONFIGURATION_ERROR: aborts the run before any command is sent
//   - INTERPRETER_UNAVAILABLE: the caller may fall back to standalone mode
//   - COMMAND_TIMEOUT: absorbed per entry; the session stays usable
//   - PROCESS_TERMINATED: the session is cleaned up and the run fails
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Command is the command being processed, if any.
	Command string

	// Partial is the output read before the failure.
	Partial string

	// Timeout is the window that elapsed, for COMMAND_TIMEOUT.
	Timeout time.Duration

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes adapter errors.
type ErrorCode string

const (
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	CodeUnavailable   ErrorCode = "INTERPRETER_UNAVAILABLE"
	CodeTimeout       ErrorCode = "COMMAND_TIMEOUT"
	CodeTerminated    ErrorCode = "PROCESS_TERMINATED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Command != "" {
		msg = fmt.Sprintf("%s (command=%q)", msg, e.Command)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a missing or invalid setting.
func ConfigurationError(format string, args ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// UnavailableError reports an interpreter that could not be located or spawned.
func UnavailableError(message string, err error) *Error {
	return &Error{Code: CodeUnavailable, Message: message, Err: err}
}

func timeoutError(command, partial string, d time.Duration) *Error {
	return &Error{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("no prompt within %s", d),
		Command: command,
		Partial: partial,
		Timeout: d,
	}
}

func terminatedError(command, partial string, err error) *Error {
	return &Error{
		Code:    CodeTerminated,
		Message: "interpreter exited unexpectedly",
		Command: command,
		Partial: partial,
		Err:     err,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// IsConfiguration returns true if err is a configuration error.
func IsConfiguration(err error) bool { return hasCode(err, CodeConfiguration) }

// IsUnavailable returns true if err reports an unreachable interpreter.
func IsUnavailable(err error) bool { return hasCode(err, CodeUnavailable) }

// IsTimeout returns true if err is a per-command timeout.
func IsTimeout(err error) bool { return hasCode(err, CodeTimeout) }

// IsTerminated returns true if err reports an unexpected process exit.
func IsTerminated(err error) bool { return hasCode(err, CodeTerminated) }

// PartialOutput returns the output captured before err, if err carries any.
func PartialOutput(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Partial
	}
	return ""
}

// FormatTimeoutEntry renders the transcript output recorded for a command
// that timed out. Partial output, when present, comes first.
func FormatTimeoutEntry(partial string, d time.Duration) string {
	marker := fmt.Sprintf("[error: command timed out after %s]", d)
	if partial == "" {
		return marker
	}
	return partial + "\n" + marker
}
