package knapsack

import "errors"

var (
	// ErrInvalidItem is returned when an item has a negative id, a size outside 1..MaxItemValue
	// or a profit outside 0..MaxItemValue.
	ErrInvalidItem = errors.New("item must have a non-negative id, a positive size and a non-negative profit within bounds")
	// ErrDuplicateItem is returned when two items (or two selected ids) share the same id.
	ErrDuplicateItem = errors.New("item ids must be unique")
	// ErrUnknownItem is returned when a selection references an id that is not part of the instance.
	ErrUnknownItem = errors.New("item id is not part of the instance")
	// ErrInvalidCapacity is returned when the knapsack capacity is negative.
	ErrInvalidCapacity = errors.New("capacity must be a non-negative integer")
	// ErrDuplicateAlgorithm is returned when an algorithm with the same display name is already registered.
	ErrDuplicateAlgorithm = errors.New("algorithm with this name is already registered")
)
