package cache

import "github.com/jmgilman/go/errors"

// Sentinel kinds for cache errors.
var (
	ErrNotCollection   = errors.New(errors.CodeSchemaFailed, "listing reply is not a JSON array")
	ErrUnsupportedKind = errors.New(errors.CodeInvalidInput, "request kind not served by the cache")
)
