package dispatch

import "github.com/jmgilman/go/errors"

// ErrUnroutable is returned for requests of an unknown kind.
var ErrUnroutable = errors.New(errors.CodeInvalidInput, "request kind has no route")
