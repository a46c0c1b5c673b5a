package tagsink

import "errors"

var (
	// ErrOutsideCollection is returned when a host path does not lie inside the
	// collection root.
	ErrOutsideCollection = errors.New("path is outside the collection")

	// ErrNotTracked is returned when an operation needs an entity that the
	// store does not know.
	ErrNotTracked = errors.New("path is not tracked")
)
