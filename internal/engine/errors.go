package engine

import "errors"

var (
	// ErrNotAuthenticated is returned when the engine has no store scope
	// configured; every operation short-circuits until one is set.
	ErrNotAuthenticated = errors.New("no store scope configured")

	// ErrBusy is returned when a reconciliation cycle is already in flight.
	ErrBusy = errors.New("reconciliation already in flight")

	// ErrClosed is returned by operations on a torn-down engine.
	ErrClosed = errors.New("engine is closed")
)
