package remote

import "errors"

var (
	// ErrUnavailable indicates the upstream platform could not be reached or
	// answered with a server error. Callers fall back to cached state.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrUnauthorized indicates the upstream platform rejected our
	// credentials. Treated like unavailability for fallback purposes, but
	// logged loudly since retrying will not help.
	ErrUnauthorized = errors.New("upstream rejected credentials")
)
