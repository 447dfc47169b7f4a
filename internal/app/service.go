// Package service assembles the gateway: store, upstream client, bus
// endpoints, crawler, cache manager, dispatcher and refresh scheduler.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/internal/adapters/repository"
	"github.com/okian/cachegate/internal/adapters/upstream"
	"github.com/okian/cachegate/internal/app/bus"
	"github.com/okian/cachegate/internal/app/cache"
	"github.com/okian/cachegate/internal/app/crawl"
	"github.com/okian/cachegate/internal/app/dispatch"
	"github.com/okian/cachegate/internal/config"
	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/pkg/logger"
	"github.com/okian/cachegate/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const stopTimeout = 10 * time.Second

// ErrNotStarted is returned by Dispatch before Start or after Stop.
var ErrNotStarted = errors.New(errors.CodeUnavailable, "service not started")

// Service owns every long-lived component of the gateway.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	store      repository.Store
	upstreamEP *bus.Endpoint[upstream.Request, upstream.Response]
	cacheEP    *bus.Endpoint[model.Request, model.Result]
	crawler    *crawl.Crawler
	manager    *cache.Manager
	dispatcher *dispatch.Dispatcher
	scheduler  *cron.Cron

	started  bool
	ownStore bool
	logger   logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the store selected by cache_backend.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// New constructs a Service from a validated configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the components, runs the first refresh and
// schedules the next ones. A failing first refresh is logged; the service
// still starts and serves what it can.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	cfg := s.cfg
	s.logger.Info(ctx, "starting gateway...")

	opened := false
	if s.store == nil {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		s.store = store
		opened = true
	}
	s.ownStore = opened
	abort := func(err error) error {
		if opened {
			_ = s.store.Close()
			s.store = nil
		}
		return err
	}
	if cfg.FlushOnStart {
		if err := s.store.Flush(ctx); err != nil {
			return abort(errors.Wrap(err, errors.CodeUnavailable, "flush store on start"))
		}
		s.logger.Info(ctx, "store flushed")
	}

	// The crawler fills pages through the dispatcher built below.
	var router *dispatch.Dispatcher
	s.crawler = crawl.New(func(ctx context.Context, req model.Request) (model.Result, error) {
		return router.Dispatch(ctx, req)
	},
		crawl.WithWorkers(cfg.CrawlWorkers),
		crawl.WithCapacity(cfg.CrawlQueueSize),
		crawl.WithMaxPages(cfg.CrawlMaxPages),
	)

	client, err := upstream.New(cfg.UpstreamBaseURL, cfg.UpstreamToken,
		upstream.WithUserAgent(cfg.UserAgent),
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithRateLimit(cfg.UpstreamRPS, cfg.UpstreamBurst),
		upstream.WithContinuation(func(setKey, next string) { s.crawler.Submit(setKey, next) }),
	)
	if err != nil {
		return abort(err)
	}
	s.upstreamEP = bus.NewEndpoint[upstream.Request, upstream.Response]("upstream", cfg.UpstreamWorkers, cfg.QueueSize, client.Fetch)
	fetcher := upstream.FetcherFunc(s.upstreamEP.Call)

	s.manager = cache.New(s.store, fetcher,
		cache.WithKeyPaths(cfg.KeyPaths...),
		cache.WithSetPaths(cfg.SetPaths...),
		cache.WithLeaderboardSource(cfg.LeaderboardSource),
		cache.WithRefreshConcurrency(cfg.RefreshConcurrency),
	)
	s.cacheEP = bus.NewEndpoint[model.Request, model.Result]("cache", cfg.CacheWorkers, cfg.QueueSize, s.manager.Handle)
	s.dispatcher = dispatch.New(s.cacheEP, fetcher, cfg.RouterWorkers, cfg.QueueSize)
	router = s.dispatcher

	s.upstreamEP.Start(ctx)
	s.cacheEP.Start(ctx)
	s.dispatcher.Start(ctx)
	s.crawler.Start(ctx)
	s.started = true

	if err := s.manager.RefreshAll(ctx, "startup"); err != nil {
		s.logger.Warn(ctx, "initial refresh incomplete", logger.Error(err))
	}

	s.scheduler = cron.New(
		cron.WithLogger(logger.CronLogger{L: s.logger.Named("cron")}),
		cron.WithChain(cron.Recover(logger.CronLogger{L: s.logger.Named("cron")}),
			cron.SkipIfStillRunning(logger.CronLogger{L: s.logger.Named("cron")})),
	)
	spec := "@every " + cfg.RefreshInterval.String()
	if _, err := s.scheduler.AddFunc(spec, func() {
		if err := s.manager.RefreshAll(context.Background(), "timer"); err != nil {
			s.logger.Warn(context.Background(), "scheduled refresh incomplete", logger.Error(err))
		}
	}); err != nil {
		return errors.Wrapf(err, errors.CodeInvalidConfig, "schedule refresh %q", spec)
	}
	s.scheduler.Start()

	s.logger.Info(ctx, "gateway started",
		logger.String("backend", cfg.CacheBackend),
		logger.Duration("refresh_interval", cfg.RefreshInterval),
		logger.Int("key_paths", len(cfg.KeyPaths)),
		logger.Int("set_paths", len(cfg.SetPaths)),
	)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.CacheBackend {
	case config.BackendMemory:
		return repository.NewTreapStore(ctx), nil
	default:
		store := repository.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, errors.Wrapf(err, errors.CodeUnavailable, "connect redis at %s", cfg.RedisAddr)
		}
		return store, nil
	}
}

// Stop halts the scheduler, then the crawler and pools, and closes the
// store unless it was passed in with WithStore.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping gateway...")

	<-s.scheduler.Stop().Done()

	if err := s.crawler.Drain(ctx); err != nil {
		s.logger.Warn(ctx, "crawl queue not drained", logger.Error(err))
	}
	_ = s.crawler.Stop(ctx)
	_ = s.dispatcher.Stop(ctx)
	_ = s.cacheEP.Stop(ctx)
	_ = s.upstreamEP.Stop(ctx)

	if s.ownStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "store close failed", logger.Error(err))
		}
		s.store = nil
	}

	s.started = false
	s.logger.Info(ctx, "gateway stopped")
}

// Dispatch routes req through the dispatcher and waits for the reply.
func (s *Service) Dispatch(ctx context.Context, req model.Request) (model.Result, error) {
	s.mu.RLock()
	d := s.dispatcher
	started := s.started
	s.mu.RUnlock()
	if !started {
		return model.Result{}, ErrNotStarted
	}
	return d.Dispatch(ctx, req)
}

// Send routes req without waiting.
func (s *Service) Send(ctx context.Context, req model.Request) error {
	s.mu.RLock()
	d := s.dispatcher
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	return d.Send(ctx, req)
}

// Ready reports whether the leaderboard has been built at least once.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manager != nil && s.manager.Ready()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":           s.started,
		"backend":           s.cfg.CacheBackend,
		"refreshInterval":   s.cfg.RefreshInterval.String(),
		"leaderboardSource": s.cfg.LeaderboardSource,
		"keyPaths":          s.cfg.KeyPaths,
		"setPaths":          s.cfg.SetPaths,
		"crawlMaxPages":     s.cfg.CrawlMaxPages,
	}

	if s.started {
		queues := map[string]int{
			"router":   s.dispatcher.Len(ctx),
			"cache":    s.cacheEP.Len(ctx),
			"upstream": s.upstreamEP.Len(ctx),
			"crawl":    s.crawler.Len(ctx),
		}
		stats["queues"] = queues
		stats["ready"] = s.manager.Ready()
		stats["rebuildState"] = s.manager.State().String()

		stats["workers"] = map[string]int{
			"router":   s.cfg.RouterWorkers,
			"cache":    s.cfg.CacheWorkers,
			"upstream": s.cfg.UpstreamWorkers,
			"crawl":    s.cfg.CrawlWorkers,
		}

		for name, n := range queues {
			metrics.UpdateQueueSize(name, n)
		}
		metrics.UpdateLeaderboardReady(s.manager.Ready())
	}

	return stats
}
