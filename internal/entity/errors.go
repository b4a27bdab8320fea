package entity

import "errors"

// Domain errors for the entity package.
var (
	// ErrUnknownOption is returned when a select is given an option it does not list.
	ErrUnknownOption = errors.New("entity: unknown option")

	// ErrUnsupportedCommand is returned when an entity does not accept a command.
	ErrUnsupportedCommand = errors.New("entity: unsupported command")

	// ErrInvalidCommandValue is returned when a command value has the wrong type.
	ErrInvalidCommandValue = errors.New("entity: invalid command value")
)
