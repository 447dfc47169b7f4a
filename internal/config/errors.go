package config

import (
	"github.com/jmgilman/go/errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig = errors.New(errors.CodeInvalidConfig, "invalid config")
	ErrLoadConfig    = errors.New(errors.CodeInvalidConfig, "load config failed")
	ErrMissingToken  = errors.New(errors.CodeInvalidConfig, "upstream token is required (set CACHEGATE_UPSTREAM_TOKEN or GITHUB_API_TOKEN)")
)
