package config_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		_ = os.Setenv("CACHEGATE_UPSTREAM_TOKEN", "test-token")
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.UpstreamToken, convey.ShouldEqual, "test-token")
				convey.So(cfg.RefreshInterval, convey.ShouldEqual, 5*time.Second)
				convey.So(cfg.KeyPaths, convey.ShouldResemble, []string{"/", "/orgs/Netflix"})
				convey.So(cfg.SetPaths, convey.ShouldResemble, []string{"/orgs/Netflix/members", "/orgs/Netflix/repos"})
				convey.So(cfg.CacheWorkers, convey.ShouldEqual, 20)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CACHEGATE_ADDR", ":9090")
			_ = os.Setenv("CACHEGATE_REFRESH_INTERVAL", "2s")
			_ = os.Setenv("CACHEGATE_CACHE_BACKEND", "memory")
			_ = os.Setenv("CACHEGATE_CACHE_WORKERS", "4")
			_ = os.Setenv("CACHEGATE_SET_PATHS", "/orgs/acme/repos,/orgs/acme/members")
			_ = os.Setenv("CACHEGATE_LEADERBOARD_SOURCE", "/orgs/acme/repos")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RefreshInterval, convey.ShouldEqual, 2*time.Second)
				convey.So(cfg.CacheBackend, convey.ShouldEqual, config.BackendMemory)
				convey.So(cfg.CacheWorkers, convey.ShouldEqual, 4)
				convey.So(cfg.SetPaths, convey.ShouldResemble, []string{"/orgs/acme/repos", "/orgs/acme/members"})
			})
		})

		convey.Convey("When the legacy variables are set", func() {
			_ = os.Unsetenv("CACHEGATE_UPSTREAM_TOKEN")
			_ = os.Setenv("GITHUB_API_TOKEN", "legacy-token")
			_ = os.Setenv("APP_PORT", "9000")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they map onto the token and port", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.UpstreamToken, convey.ShouldEqual, "legacy-token")
				convey.So(cfg.Addr, convey.ShouldEqual, ":9000")
			})

			convey.Convey("And the prefixed variable wins over the legacy one", func() {
				_ = os.Setenv("CACHEGATE_UPSTREAM_TOKEN", "new-token")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.UpstreamToken, convey.ShouldEqual, "new-token")
			})
		})

		convey.Convey("When no token is configured anywhere", func() {
			_ = os.Unsetenv("CACHEGATE_UPSTREAM_TOKEN")

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails closed", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrMissingToken), convey.ShouldBeTrue)
				convey.So(errors.GetCode(err), convey.ShouldEqual, errors.CodeInvalidConfig)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":7070"
refresh_interval: 30s
key_paths:
  - /
set_paths:
  - /orgs/acme/repos
leaderboard_source: /orgs/acme/repos
crawl_max_pages: 3
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CACHEGATE_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.RefreshInterval, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.KeyPaths, convey.ShouldResemble, []string{"/"})
				convey.So(cfg.SetPaths, convey.ShouldResemble, []string{"/orgs/acme/repos"})
				convey.So(cfg.CrawlMaxPages, convey.ShouldEqual, 3)
				convey.So(cfg.UpstreamWorkers, convey.ShouldEqual, 20) // from defaults
			})

			convey.Convey("And environment variables override file values", func() {
				_ = os.Setenv("CACHEGATE_ADDR", ":6060")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.RefreshInterval, convey.ShouldEqual, 30*time.Second)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CACHEGATE_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CACHEGATE_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("CACHEGATE_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When the leaderboard source is not a set path", func() {
			_ = os.Setenv("CACHEGATE_LEADERBOARD_SOURCE", "/orgs/other/repos")

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "leaderboard_source")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CACHEGATE_CACHE_WORKERS", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When key paths are listed in the environment", func() {
			_ = os.Setenv("CACHEGATE_KEY_PATHS", "/, /orgs/acme ,")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the list is split and trimmed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.KeyPaths, convey.ShouldResemble, []string{"/", "/orgs/acme"})
			})
		})

		convey.Convey("When the refresh interval is under a second", func() {
			_ = os.Setenv("CACHEGATE_REFRESH_INTERVAL", "500ms")

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "refresh_interval")
			})
		})

		convey.Convey("When an unknown backend is configured", func() {
			_ = os.Setenv("CACHEGATE_CACHE_BACKEND", "memcached")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "cache_backend")
			})
		})
	})
}

// Helper functions

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "cachegate-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = tmpFile.Close() }()

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}

func clearConfigEnvVars() {
	for _, name := range []string{
		"CACHEGATE_CONFIG",
		"CACHEGATE_ADDR",
		"CACHEGATE_PORT",
		"CACHEGATE_UPSTREAM_TOKEN",
		"CACHEGATE_REFRESH_INTERVAL",
		"CACHEGATE_CACHE_BACKEND",
		"CACHEGATE_CACHE_WORKERS",
		"CACHEGATE_KEY_PATHS",
		"CACHEGATE_SET_PATHS",
		"CACHEGATE_LEADERBOARD_SOURCE",
		"GITHUB_API_TOKEN",
		"APP_PORT",
	} {
		_ = os.Unsetenv(name)
	}
}
