package tuya

import "errors"

// Domain errors for the tuya package.
var (
	// ErrFrameTruncated is returned when a frame ends inside a record.
	ErrFrameTruncated = errors.New("tuya: datapoint frame truncated")

	// ErrUnknownType is returned for a type code outside raw..bitmap.
	ErrUnknownType = errors.New("tuya: unknown datapoint type")

	// ErrValueTooLong is returned when an encoded value exceeds 255 bytes.
	ErrValueTooLong = errors.New("tuya: datapoint value too long")

	// ErrInvalidValue is returned when a value does not fit its datapoint type.
	ErrInvalidValue = errors.New("tuya: invalid datapoint value")

	// ErrIncompleteCredentials is returned when a required credential is empty.
	ErrIncompleteCredentials = errors.New("tuya: incomplete device credentials")

	// ErrInvalidDevice is returned by NewDevice when address or device id is missing.
	ErrInvalidDevice = errors.New("tuya: invalid device")
)
