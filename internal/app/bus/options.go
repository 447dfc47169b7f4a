package bus

import "github.com/okian/cachegate/pkg/logger"

type settings struct {
	logger logger.Logger
}

// Option configures an Endpoint.
type Option func(*settings)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
