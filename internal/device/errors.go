package device

import "errors"

// Sentinel errors for device operations.
var (
	// ErrDeviceNotFound indicates the requested device ID does not exist.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrUnknownCommand indicates a command name outside the supported set.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidValue indicates a SET_VALUE payload that is not an integer.
	ErrInvalidValue = errors.New("invalid value")

	// ErrMissingField indicates a command that omits a required field.
	ErrMissingField = errors.New("missing required field")
)
