package gara

import "errors"

// Caller contract violations. Mutations wrap these with context; transports
// match them with errors.Is.
var (
	ErrInvalidIndex    = errors.New("invalid checklist index")
	ErrNotFound        = errors.New("not found")
	ErrInvalidProgress = errors.New("invalid progress value")
	ErrMissingField    = errors.New("missing required field")
)
