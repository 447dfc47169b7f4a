// Package cache owns the cached documents, the listing sets and the
// leaderboard views derived from them.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/internal/adapters/repository"
	"github.com/okian/cachegate/internal/adapters/upstream"
	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/pkg/logger"
	"github.com/okian/cachegate/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const defaultRefreshConcurrency = 8

// Manager implements get-or-fill over the store, the periodic refresh and
// the leaderboard rebuild.
type Manager struct {
	store    repository.Store
	upstream upstream.Fetcher

	keyPaths    []string
	setPaths    []string
	source      string
	concurrency int

	ready     atomic.Bool
	state     atomic.Int32
	rebuildMu sync.Mutex
	refreshes singleflight.Group

	logger logger.Logger
}

// New creates a Manager. The fetcher should be the upstream endpoint so
// calls are bounded by its pool.
func New(store repository.Store, fetcher upstream.Fetcher, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		upstream:    fetcher,
		concurrency: defaultRefreshConcurrency,
		logger:      logger.Get().Named("cache"),
	}
	for _, opt := range opts {
		opt(m)
	}
	metrics.UpdateLeaderboardReady(false)
	return m
}

// Ready reports whether a rebuild has been attempted since start.
func (m *Manager) Ready() bool { return m.ready.Load() }

// State returns the current rebuild state.
func (m *Manager) State() State { return State(m.state.Load()) }

func (m *Manager) setState(s State) { m.state.Store(int32(s)) }

func (m *Manager) markReady() {
	if !m.ready.Swap(true) {
		metrics.UpdateLeaderboardReady(true)
		m.logger.Info(context.Background(), "leaderboard ready")
	}
}

// Handle serves cache requests arriving on the bus.
func (m *Manager) Handle(ctx context.Context, req model.Request) (model.Result, error) {
	switch req.Kind {
	case model.KindKey:
		doc, err := m.GetKey(ctx, req.Path)
		return model.Result{Document: doc}, err
	case model.KindSet:
		members, err := m.GetSet(ctx, req)
		return model.Result{Members: members}, err
	case model.KindRank:
		return m.GetRank(ctx, req.Path)
	default:
		return model.Result{}, errors.Wrapf(ErrUnsupportedKind, errors.CodeInvalidInput, "cache cannot serve %s requests", req.Kind)
	}
}

// GetKey returns the cached document for path, fetching it on a miss.
func (m *Manager) GetKey(ctx context.Context, path string) ([]byte, error) {
	doc, err := m.store.GetDocument(ctx, path)
	if err == nil {
		metrics.RecordCacheLookup("key", true)
		return doc, nil
	}
	metrics.RecordCacheLookup("key", false)
	if !errors.Is(err, repository.ErrNotFound) {
		m.logger.Warn(ctx, "document read failed, going upstream", logger.String("path", path), logger.Error(err))
	}
	return m.fillKey(ctx, path)
}

// GetSet returns the members of a listing. Page requests always go
// upstream and return just that page after merging it into the set.
func (m *Manager) GetSet(ctx context.Context, req model.Request) ([][]byte, error) {
	key := req.CanonicalKey()
	if req.IsPage() {
		metrics.RecordCacheLookup("page", false)
		return m.fillSet(ctx, req.Path, key)
	}

	members, err := m.store.GetMembers(ctx, key)
	if err == nil {
		metrics.RecordCacheLookup("set", true)
		return members, nil
	}
	metrics.RecordCacheLookup("set", false)
	if !errors.Is(err, repository.ErrNotFound) {
		m.logger.Warn(ctx, "set read failed, going upstream", logger.String("key", key), logger.Error(err))
	}

	items, err := m.fillSet(ctx, req.Path, key)
	if err != nil {
		return nil, err
	}
	if members, err := m.store.GetMembers(ctx, key); err == nil {
		return members, nil
	}
	return items, nil
}

func (m *Manager) fillKey(ctx context.Context, path string) ([]byte, error) {
	resp, err := m.upstream.Fetch(ctx, upstream.Request{Path: path})
	if err != nil {
		metrics.RecordCacheFill("key", false, 0)
		return nil, err
	}
	if err := m.store.PutDocument(ctx, path, resp.Body); err != nil {
		m.logger.Error(ctx, "document write failed", logger.String("path", path), logger.Error(err))
	}
	metrics.RecordCacheFill("key", true, len(resp.Body))
	return resp.Body, nil
}

// fillSet fetches one page into the canonical set and rebuilds the views
// when the set feeds them.
func (m *Manager) fillSet(ctx context.Context, path, key string) ([][]byte, error) {
	resp, err := m.upstream.Fetch(ctx, upstream.Request{Path: path, SetKey: key})
	if err != nil {
		metrics.RecordCacheFill("set", false, 0)
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		metrics.RecordCacheFill("set", false, 0)
		return nil, errors.WrapWithContext(ErrNotCollection, errors.CodeSchemaFailed, ErrNotCollection.Message(),
			map[string]interface{}{"path": path, "cause": err.Error()})
	}

	items := make([][]byte, 0, len(raw))
	members := make([]repository.Member, 0, len(raw))
	for _, r := range raw {
		items = append(items, r)
		members = append(members, repository.Member{ID: model.StableKey(r), Payload: r})
	}
	if err := m.store.AddMembers(ctx, key, members); err != nil {
		m.logger.Error(ctx, "set write failed", logger.String("key", key), logger.Error(err))
		metrics.RecordCacheFill("set", false, 0)
		return items, nil
	}
	metrics.RecordCacheFill("set", true, len(resp.Body))

	if key == m.source {
		if err := m.RebuildLeaderboard(ctx); err != nil {
			m.logger.Warn(ctx, "rebuild after fill failed", logger.String("key", key), logger.Error(err))
		}
	}
	return items, nil
}
