package tuyable

import "errors"

// Domain errors for the Tuya BLE bridge package.
var (
	// ErrMQTTRequired is returned by NewBridge without an MQTT client.
	ErrMQTTRequired = errors.New("tuyable: MQTT client is required")

	// ErrDuplicateDevice is returned when two configured devices share an
	// id or a BLE address.
	ErrDuplicateDevice = errors.New("tuyable: duplicate device")

	// ErrDeviceNotFound is returned for an unknown device id.
	ErrDeviceNotFound = errors.New("tuyable: device not found")

	// ErrEntityNotFound is returned for an unknown entity key.
	ErrEntityNotFound = errors.New("tuyable: entity not found")

	// ErrDeviceUnavailable is returned when commanding an unavailable entity.
	ErrDeviceUnavailable = errors.New("tuyable: device unavailable")

	// ErrInvalidPayload is returned when an MQTT payload cannot be decoded.
	ErrInvalidPayload = errors.New("tuyable: invalid payload")

	// ErrScannerUnavailable is returned when the BLE adapter cannot be enabled.
	ErrScannerUnavailable = errors.New("tuyable: BLE scanner unavailable")
)
