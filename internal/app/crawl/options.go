package crawl

import "github.com/okian/cachegate/pkg/logger"

type settings struct {
	workers  int
	capacity int
	maxPages int
	logger   logger.Logger
}

// Option configures a Crawler.
type Option func(*settings)

// WithWorkers sets how many pages are filled at once.
func WithWorkers(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithCapacity bounds the number of queued pages.
func WithCapacity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithMaxPages drops continuations past this page number.
func WithMaxPages(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
