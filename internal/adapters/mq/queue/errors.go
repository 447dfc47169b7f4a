package queue

import "github.com/jmgilman/go/errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New(errors.CodeUnavailable, "queue full")
	ErrClosed = errors.New(errors.CodeUnavailable, "queue closed")
)
