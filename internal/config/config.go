// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Loading layers defaults, an optional YAML file and the environment.
// - The upstream token has no default; Load fails without it.
package config

import (
	"context"
	"time"
)

// MinRefreshInterval is the shortest refresh period the scheduler can run.
const MinRefreshInterval = time.Second

// Cache backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects "text" or "json" log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080". Port, when set,
	// overrides the port part of Addr.
	Addr string `koanf:"addr"`
	Port int    `koanf:"port"`

	// Upstream API.
	UpstreamBaseURL string        `koanf:"upstream_base_url"`
	UpstreamToken   string        `koanf:"upstream_token"`
	UserAgent       string        `koanf:"user_agent"`
	UpstreamTimeout time.Duration `koanf:"upstream_timeout"`
	// UpstreamRPS limits upstream calls per second; 0 disables the limiter.
	UpstreamRPS   float64 `koanf:"upstream_rps"`
	UpstreamBurst int     `koanf:"upstream_burst"`

	// Refresh schedule and the endpoints it covers. RefreshInterval must be
	// at least MinRefreshInterval.
	RefreshInterval    time.Duration `koanf:"refresh_interval"`
	RefreshConcurrency int           `koanf:"refresh_concurrency"`
	KeyPaths           []string      `koanf:"key_paths"`
	SetPaths           []string      `koanf:"set_paths"`
	LeaderboardSource  string        `koanf:"leaderboard_source"`

	// Store.
	CacheBackend  string `koanf:"cache_backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	FlushOnStart  bool   `koanf:"flush_on_start"`

	// Pools and queues.
	RouterWorkers   int `koanf:"router_workers"`
	CacheWorkers    int `koanf:"cache_workers"`
	UpstreamWorkers int `koanf:"upstream_workers"`
	CrawlWorkers    int `koanf:"crawl_workers"`
	QueueSize       int `koanf:"queue_size"`
	CrawlQueueSize  int `koanf:"crawl_queue_size"`
	CrawlMaxPages   int `koanf:"crawl_max_pages"`

	// Tracing.
	TracingEnabled  bool   `koanf:"tracing_enabled"`
	TracingEndpoint string `koanf:"tracing_endpoint"`
	ServiceName     string `koanf:"service_name"`
}

// New creates a Config with defaults. Context is accepted first to follow the
// project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":8080",
		UpstreamBaseURL:    "https://api.github.com/",
		UserAgent:          "cachegate/1",
		UpstreamTimeout:    10 * time.Second,
		UpstreamRPS:        20,
		UpstreamBurst:      20,
		RefreshInterval:    5 * time.Second,
		RefreshConcurrency: 8,
		KeyPaths:           []string{"/", "/orgs/Netflix"},
		SetPaths:           []string{"/orgs/Netflix/members", "/orgs/Netflix/repos"},
		LeaderboardSource:  "/orgs/Netflix/repos",
		CacheBackend:       BackendRedis,
		RedisAddr:          "localhost:6379",
		FlushOnStart:       true,
		RouterWorkers:      20,
		CacheWorkers:       20,
		UpstreamWorkers:    20,
		CrawlWorkers:       4,
		QueueSize:          1024,
		CrawlQueueSize:     1000,
		CrawlMaxPages:      100,
		TracingEndpoint:    "localhost:4317",
		ServiceName:        "cachegate",
	}
}
