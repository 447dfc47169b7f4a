package scoring

import "github.com/jmgilman/go/errors"

// Scoring errors.
var (
	// ErrMalformed marks a listing item a view cannot score.
	ErrMalformed = errors.New(errors.CodeSchemaFailed, "malformed record")
	// ErrUnknownView is returned for a view name that is not configured.
	ErrUnknownView = errors.New(errors.CodeInvalidInput, "unknown view")
)
