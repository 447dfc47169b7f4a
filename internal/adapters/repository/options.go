package repository

import "time"

type options struct {
	metricsUpdateInterval time.Duration
	keyPrefix             string
}

func defaultOptions() options {
	return options{
		metricsUpdateInterval: 5 * time.Second,
		keyPrefix:             "cachegate:",
	}
}

// Option configures a store.
type Option func(*options)

// WithMetricsUpdateInterval sets the interval for background metrics updates
// of the in-memory store.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithKeyPrefix namespaces every Redis key the store writes.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}
