package cache

import "errors"

var (
	// ErrNotFound is returned when a cache key has no entry. Absence is a
	// normal outcome for callers, not a failure.
	ErrNotFound = errors.New("cache entry not found")
)
