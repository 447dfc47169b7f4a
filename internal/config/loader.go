package config

import (
	"context"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/jmgilman/go/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment names.
const (
	EnvPrefix     = "CACHEGATE_"
	EnvConfigFile = "CACHEGATE_CONFIG"
	EnvLegacyTok  = "GITHUB_API_TOKEN"
	EnvLegacyPort = "APP_PORT"
)

// listKeys are the keys whose environment values hold comma separated lists.
var listKeys = map[string]struct{}{
	"key_paths": {},
	"set_paths": {},
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if CACHEGATE_CONFIG is set
//  3. GITHUB_API_TOKEN and APP_PORT
//  4. env (prefix CACHEGATE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "%s: read %s", ErrLoadConfig.Message(), path)
		}
	}

	legacy := []struct{ name, key string }{
		{EnvLegacyTok, "upstream_token"},
		{EnvLegacyPort, "port"},
	}
	for _, l := range legacy {
		name, key := l.name, l.key
		p := env.Provider(name, ".", func(s string) string {
			if s != name {
				return ""
			}
			return key
		})
		if err := k.Load(p, nil); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, ErrLoadConfig.Message())
		}
	}

	// CACHEGATE_REDIS_ADDR -> redis_addr (flat keys; underscores preserved to
	// match the koanf tags on the struct). List keys are comma separated.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(k, v string) (string, interface{}) {
		key := strings.TrimPrefix(strings.ToLower(k), strings.ToLower(EnvPrefix))
		if _, ok := listKeys[key]; ok {
			return key, strings.Split(v, ",")
		}
		return key, v
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, ErrLoadConfig.Message())
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, ErrLoadConfig.Message())
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize folds Port into Addr and trims list entries.
func (c *Config) normalize() error {
	if c.Port > 0 {
		host := ""
		if c.Addr != "" {
			h, _, err := net.SplitHostPort(c.Addr)
			if err != nil {
				return errors.Wrap(err, errors.CodeInvalidConfig, "invalid addr")
			}
			host = h
		}
		c.Addr = net.JoinHostPort(host, strconv.Itoa(c.Port))
	}
	c.UpstreamToken = strings.TrimSpace(c.UpstreamToken)
	c.KeyPaths = trimAll(c.KeyPaths)
	c.SetPaths = trimAll(c.SetPaths)
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the invariants the service relies on at startup.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return errors.Wrap(ErrInvalidConfig, errors.CodeInvalidConfig, msg)
	}

	if c.UpstreamToken == "" {
		return ErrMissingToken
	}
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	u, err := url.Parse(c.UpstreamBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("upstream_base_url must be an absolute http(s) URL")
	}
	if c.RefreshInterval < MinRefreshInterval {
		return invalid("refresh_interval must be at least " + MinRefreshInterval.String())
	}
	switch c.CacheBackend {
	case BackendRedis, BackendMemory:
	default:
		return invalid("cache_backend must be redis or memory")
	}
	for _, p := range append(slices.Clone(c.KeyPaths), c.SetPaths...) {
		if !strings.HasPrefix(p, "/") {
			return invalid("paths must start with '/': " + p)
		}
	}
	if !slices.Contains(c.SetPaths, c.LeaderboardSource) {
		return invalid("leaderboard_source must be one of set_paths")
	}
	if c.CrawlMaxPages < 1 {
		return invalid("crawl_max_pages must be at least 1")
	}
	return nil
}
