package repository

import "github.com/jmgilman/go/errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New(errors.CodeNotFound, "not cached")
	ErrInvalidLimit = errors.New(errors.CodeInvalidInput, "invalid range limit")
	ErrBackend      = errors.New(errors.CodeUnavailable, "store unavailable")
)
