package service

import "errors"

// Session lifecycle error types, surfaced as-is to the HTTP boundary.
var (
	ErrSessionConflict  = errors.New("an active session already exists for this tenant")
	ErrCapacityExceeded = errors.New("concurrent session capacity reached")
	ErrNotConnected     = errors.New("session is not connected")
	ErrDuplicateSession = errors.New("session id already registered")
)
