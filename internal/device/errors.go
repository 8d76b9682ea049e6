package device

import "errors"

var (
	// ErrDuplicateID is returned when a collection carries the same device ID twice.
	ErrDuplicateID = errors.New("device: duplicate id in collection")

	// ErrMissingID is returned when a device in a collection has no ID.
	ErrMissingID = errors.New("device: missing id")
)
