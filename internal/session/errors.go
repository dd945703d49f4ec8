package session

import "errors"

var (
	// ErrUnknownItem is returned when an id is not part of the catalog.
	ErrUnknownItem = errors.New("item is not part of the catalog")
	// ErrWouldOverflow is returned when adding an item would exceed the capacity.
	ErrWouldOverflow = errors.New("item does not fit into the remaining capacity")
	// ErrInvalidCapacity is returned for a negative capacity.
	ErrInvalidCapacity = errors.New("capacity must be a non-negative integer")
)
