package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the clockbridge domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("clockbridge: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("clockbridge: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("clockbridge: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("clockbridge: invalid configuration")

	// ErrInvalidPayload is matched by every PayloadError.
	ErrInvalidPayload = errors.New("clockbridge: invalid remote event payload")

	// ErrUnknownEvent is returned for remote event names with no command template.
	ErrUnknownEvent = errors.New("clockbridge: unknown remote event")

	// ErrTransmission is matched by every TransmissionError. It is fatal.
	ErrTransmission = errors.New("clockbridge: serial transmission failed")

	// ErrNotConnected is returned when a write is attempted without an open port.
	ErrNotConnected = errors.New("clockbridge: serial port not connected")

	// ErrNoMatchingDevice is returned when discovery finds no acceptable serial device.
	ErrNoMatchingDevice = errors.New("clockbridge: no matching serial device")

	// ErrRetriesExhausted is attached to a command discarded after too many Nacks.
	ErrRetriesExhausted = errors.New("clockbridge: retries exhausted")
)

// PayloadError reports a remote event payload that could not be turned into a command.
// Field is empty when the payload as a whole was malformed.
type PayloadError struct {
	Kind  EventKind
	Field string
	Err   error
}

func (e *PayloadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s payload: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s payload: field %q: %v", e.Kind, e.Field, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// Is reports ErrInvalidPayload as a match so callers need not know the concrete type.
func (e *PayloadError) Is(target error) bool { return target == ErrInvalidPayload }

// TransmissionError reports a failed raw write of a command to the serial line.
type TransmissionError struct {
	Command string
	Err     error
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("write %q: %v", e.Command, e.Err)
}

func (e *TransmissionError) Unwrap() error { return e.Err }

func (e *TransmissionError) Is(target error) bool { return target == ErrTransmission }
