package flow

import (
	"errors"
	"fmt"
)

// Flow error kinds.
// Typed errors below unwrap to these so callers can match with errors.Is.
var (
	// ErrConfiguration is returned for malformed flow definitions.
	ErrConfiguration = errors.New("invalid flow configuration")

	// ErrValidationRejected is returned by validators when input is not accepted.
	ErrValidationRejected = errors.New("input rejected")

	// ErrTransport is returned when sending, editing or deleting a message failed.
	ErrTransport = errors.New("transport failure")

	// ErrTimeout is returned by transports when no input arrived in time.
	ErrTimeout = errors.New("timed out waiting for input")

	// ErrHandler is returned when a builder, hook or handler failed.
	ErrHandler = errors.New("handler failed")
)

// ConfigError describes a malformed definition or an unknown state reference.
type ConfigError struct {
	StateID string // State the problem was found on, may be empty
	Reason  string // Human readable description
}

func (e *ConfigError) Error() string {
	if e.StateID == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%s: state %q: %s", ErrConfiguration, e.StateID, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

func configErr(stateID, format string, args ...any) *ConfigError {
	return &ConfigError{StateID: stateID, Reason: fmt.Sprintf(format, args...)}
}

// HandlerError wraps an error returned by a user supplied function.
type HandlerError struct {
	StateID string // State being processed
	Hook    string // Which function failed, e.g. "on_enter" or "text"
	Err     error  // Underlying error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("state %q: %s: %v", e.StateID, e.Hook, e.Err)
}

func (e *HandlerError) Unwrap() []error { return []error{ErrHandler, e.Err} }

// TransportError wraps a failed transport call.
type TransportError struct {
	Op  string // send, edit or delete
	Err error  // Underlying error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// ValidationError carries the message shown to the user when input is rejected.
type ValidationError struct {
	Message string
}

// Reject builds a validation error with the given user facing message.
func Reject(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidationRejected }
