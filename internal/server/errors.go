package server

import "errors"

var (
	// ErrAlreadyStopped is returned by ServerHandle.Stop after the first
	// successful stop.
	ErrAlreadyStopped = errors.New("server already stopped")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("server already started")
)
