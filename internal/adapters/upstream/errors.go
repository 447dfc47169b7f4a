package upstream

import "github.com/jmgilman/go/errors"

// Sentinel kinds for upstream errors.
var (
	// ErrUnavailable covers connect failures and non-2xx replies.
	ErrUnavailable = errors.New(errors.CodeUnavailable, "upstream unavailable")
	ErrBaseURL     = errors.New(errors.CodeInvalidConfig, "invalid upstream base url")
)
