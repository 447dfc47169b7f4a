package cache

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/internal/adapters/repository"
	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/internal/domain/scoring"
	"github.com/okian/cachegate/internal/domain/types"
	"github.com/okian/cachegate/pkg/logger"
	"github.com/okian/cachegate/pkg/metrics"
	"github.com/okian/cachegate/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// GetRank answers /view/bottom/<N>/<view>. Before the first rebuild it runs
// one refresh cycle, shared with any cycle already in flight.
func (m *Manager) GetRank(ctx context.Context, path string) (model.Result, error) {
	n, view, err := scoring.ParseRankPath(path)
	if err != nil {
		return model.Result{}, err
	}

	ctx, span := tracing.StartSpan(ctx, "cache.rank",
		attribute.String("view", view.Name),
		attribute.Int("n", n),
	)
	defer span.End()

	if !m.ready.Load() {
		if err := m.RefreshAll(ctx, "on_demand"); err != nil {
			m.logger.Warn(ctx, "on-demand refresh incomplete", logger.Error(err))
		}
		if !m.ready.Load() {
			if err := m.RebuildLeaderboard(ctx); err != nil {
				m.logger.Warn(ctx, "on-demand rebuild failed", logger.Error(err))
			}
		}
	}

	entries, err := m.store.RangeView(ctx, view.Structure, n)
	if err != nil {
		return model.Result{}, err
	}
	if len(entries) == 0 {
		metrics.RecordCacheLookup("rank", false)
		return model.Result{NotReady: true}, nil
	}
	metrics.RecordCacheLookup("rank", true)

	return model.Result{Rows: rankRows(view, entries, n)}, nil
}

// rankRows orders by score ascending then name descending and keeps n.
func rankRows(view scoring.View, entries []repository.ViewEntry, n int) []types.Row {
	slices.SortFunc(entries, func(a, b repository.ViewEntry) int {
		if c := cmp.Compare(a.Score, b.Score); c != 0 {
			return c
		}
		return strings.Compare(b.Key, a.Key)
	})
	if len(entries) > n {
		entries = entries[:n]
	}

	rows := make([]types.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, types.Row{Name: e.Key, Score: e.Score, Value: view.Extractor.Render(e.Score)})
	}
	return rows
}

// RebuildLeaderboard recomputes every view from the source set and replaces
// each view wholesale. Rebuilds are serialized. Readiness is set once the
// attempt completes, whatever its outcome.
func (m *Manager) RebuildLeaderboard(ctx context.Context) error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "cache.rebuild", attribute.String("source", m.source))
	start := time.Now()
	outcome := "ok"
	var err error
	defer func() {
		m.setState(StateIdle)
		m.markReady()
		metrics.RecordRebuild(outcome, float64(time.Since(start).Milliseconds()))
		tracing.End(span, err)
	}()

	m.setState(StateFetchingSource)
	members, err := m.store.GetMembers(ctx, m.source)
	if errors.Is(err, repository.ErrNotFound) {
		m.setState(StateSourceMissing)
		outcome = "source_missing"
		m.logger.Debug(ctx, "leaderboard source not cached yet", logger.String("source", m.source))
		err = nil
		return nil
	}
	if err != nil {
		outcome = "error"
		return err
	}

	m.setState(StateSourceFound)
	m.setState(StateScoring)
	views := scoreMembers(ctx, m.logger, members)

	m.setState(StateReplacing)
	var failed []string
	for _, v := range scoring.Views {
		entries := views[v.Name]
		if rerr := m.store.ReplaceView(ctx, v.Structure, entries); rerr != nil {
			m.logger.Error(ctx, "view replace failed", logger.String("view", v.Name), logger.Error(rerr))
			failed = append(failed, v.Name)
			continue
		}
		metrics.UpdateViewEntries(v.Name, len(entries))
	}
	if len(failed) > 0 {
		outcome = "error"
		err = errors.Newf(errors.CodeUnavailable, "replace failed for views %s", strings.Join(failed, ","))
		return err
	}

	m.logger.Debug(ctx, "leaderboard rebuilt",
		logger.Int("records", len(members)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// scoreMembers maps every record to one entry per view. A record a view
// cannot score is skipped for that view only.
func scoreMembers(ctx context.Context, log logger.Logger, members [][]byte) map[string][]repository.ViewEntry {
	out := make(map[string][]repository.ViewEntry, len(scoring.Views))
	for _, payload := range members {
		rec, err := scoring.Decode(payload)
		var name string
		if err == nil {
			name, err = rec.Name()
		}
		if err != nil {
			for _, v := range scoring.Views {
				metrics.RecordRecordSkipped(v.Name)
			}
			log.Debug(ctx, "skipping record", logger.Error(err))
			continue
		}

		for _, v := range scoring.Views {
			score, err := v.Extractor.Score(rec)
			if err != nil {
				metrics.RecordRecordSkipped(v.Name)
				log.Debug(ctx, "skipping record for view",
					logger.String("view", v.Name),
					logger.String("name", name),
					logger.Error(err),
				)
				continue
			}
			out[v.Name] = append(out[v.Name], repository.ViewEntry{Key: name, Score: score})
		}
	}
	return out
}
