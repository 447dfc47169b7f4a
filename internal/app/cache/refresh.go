package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/pkg/logger"
	"github.com/okian/cachegate/pkg/metrics"
	"github.com/okian/cachegate/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// RefreshAll fetches every configured endpoint again. Concurrent callers
// share one cycle. Endpoint failures are logged and counted; the cycle
// carries on and reports how many failed.
func (m *Manager) RefreshAll(ctx context.Context, trigger string) error {
	_, err, shared := m.refreshes.Do("refresh", func() (interface{}, error) {
		return nil, m.refreshAll(context.WithoutCancel(ctx), trigger)
	})
	if shared {
		m.logger.Debug(ctx, "joined refresh cycle in flight", logger.String("trigger", trigger))
	}
	return err
}

func (m *Manager) refreshAll(ctx context.Context, trigger string) error {
	ctx, span := tracing.StartSpan(ctx, "cache.refresh", attribute.String("trigger", trigger))
	start := time.Now()

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(m.concurrency)

	for _, path := range m.keyPaths {
		g.Go(func() error {
			if _, err := m.fillKey(ctx, path); err != nil {
				m.refreshFailed(ctx, path, err, &failed)
			}
			return nil
		})
	}
	for _, path := range m.setPaths {
		g.Go(func() error {
			if _, err := m.fillSet(ctx, path, model.StripQuery(path)); err != nil {
				m.refreshFailed(ctx, path, err, &failed)
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.RecordRefreshCycle(trigger, float64(time.Since(start).Milliseconds()))
	total := len(m.keyPaths) + len(m.setPaths)

	var err error
	if n := failed.Load(); n > 0 {
		err = errors.Newf(errors.CodeUnavailable, "%d of %d endpoints failed", n, total)
	}
	tracing.End(span, err)

	m.logger.Debug(ctx, "refresh cycle done",
		logger.String("trigger", trigger),
		logger.Int("endpoints", total),
		logger.Int("failed", int(failed.Load())),
		logger.Duration("took", time.Since(start)),
	)
	return err
}

func (m *Manager) refreshFailed(ctx context.Context, path string, err error, failed *atomic.Int32) {
	failed.Add(1)
	metrics.RecordRefreshEndpointFailure(path)
	m.logger.Warn(ctx, "refresh endpoint failed", logger.String("path", path), logger.Error(err))
}
