package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidDevice is returned when a device record misses a required field.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidAddress is returned when a BLE address is empty.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidHistory is returned when a history write misses its device or key.
	ErrInvalidHistory = errors.New("device: invalid state history entry")
)
