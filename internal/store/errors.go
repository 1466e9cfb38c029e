package store

import "errors"

var (
	// ErrNotConnected is returned when an operation runs against a
	// closed store and reconnect-on-demand is not enabled.
	ErrNotConnected = errors.New("store: not connected")

	// ErrNotFound is returned by Update when the event id does not
	// exist. Get reports a missing row as a nil event instead.
	ErrNotFound = errors.New("store: event not found")

	// ErrEmptyTitle is returned by Create for an empty title.
	ErrEmptyTitle = errors.New("store: title must not be empty")
)
