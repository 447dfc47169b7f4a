package cache

import "github.com/okian/cachegate/pkg/logger"

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithKeyPaths sets the single-document endpoints refreshed each cycle.
func WithKeyPaths(paths ...string) Option {
	return func(m *Manager) { m.keyPaths = paths }
}

// WithSetPaths sets the listing endpoints refreshed each cycle.
func WithSetPaths(paths ...string) Option {
	return func(m *Manager) { m.setPaths = paths }
}

// WithLeaderboardSource names the set the leaderboard views are built from.
func WithLeaderboardSource(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.source = key
		}
	}
}

// WithRefreshConcurrency bounds how many endpoints a cycle fetches at once.
func WithRefreshConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}
