package repository

import (
	"bytes"
	"context"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/okian/cachegate/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// View ordering: score ASC, then key DESC. In-order traversal yields the
// bottom-N ranking directly, so RangeView never returns extra ties.

const backendMemory = "memory"

// treap node
type node struct {
	key   string
	score float64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aKey) ranks before (bScore, bKey).
func less(aScore float64, aKey string, bScore float64, bKey string) bool {
	if aScore != bScore {
		return aScore < bScore
	}
	return aKey > bKey
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// keyPriority derives a heap priority from the key so tree shape is
// deterministic for a given content.
func keyPriority(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

func insert(n *node, key string, score float64) *node {
	if n == nil {
		return &node{key: key, score: score, prio: keyPriority(key), size: 1}
	}
	if less(score, key, n.score, n.key) {
		n.left = insert(n.left, key, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// collectBottomN appends up to limit entries in rank order.
func collectBottomN(n *node, limit int, out *[]ViewEntry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectBottomN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, ViewEntry{Key: n.key, Score: n.score})
	}
	if len(*out) < limit {
		collectBottomN(n.right, limit, out)
	}
}

// TreapStore keeps everything in process memory.
type TreapStore struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	sets  map[string]map[string][]byte
	views map[string]*node

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &TreapStore{
		docs:                  make(map[string][]byte),
		sets:                  make(map[string]map[string][]byte),
		views:                 make(map[string]*node),
		metricsUpdateInterval: o.metricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the metrics goroutine.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *TreapStore) GetDocument(_ context.Context, path string) ([]byte, error) {
	defer observe("get_document", time.Now())

	s.mu.RLock()
	body, ok := s.docs[path]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(body), nil
}

func (s *TreapStore) PutDocument(_ context.Context, path string, body []byte) error {
	defer observe("put_document", time.Now())

	s.mu.Lock()
	s.docs[path] = bytes.Clone(body)
	s.mu.Unlock()
	return nil
}

func (s *TreapStore) GetMembers(_ context.Context, key string) ([][]byte, error) {
	defer observe("get_members", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[key]
	if !ok {
		return nil, ErrNotFound
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, bytes.Clone(set[id]))
	}
	return out, nil
}

func (s *TreapStore) AddMembers(_ context.Context, key string, members []Member) error {
	defer observe("add_members", time.Now())
	if len(members) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string][]byte, len(members))
		s.sets[key] = set
	}
	for _, m := range members {
		set[m.ID] = bytes.Clone(m.Payload)
	}
	return nil
}

// ReplaceView builds the new tree outside the lock and swaps the root, so
// readers see either the previous or the new generation.
func (s *TreapStore) ReplaceView(_ context.Context, view string, entries []ViewEntry) error {
	defer observe("replace_view", time.Now())

	latest := make(map[string]float64, len(entries))
	for _, e := range entries {
		latest[e.Key] = e.Score
	}
	var root *node
	for key, score := range latest {
		root = insert(root, key, score)
	}

	s.mu.Lock()
	if root == nil {
		delete(s.views, view)
	} else {
		s.views[view] = root
	}
	s.mu.Unlock()

	metrics.UpdateStoreRecords(backendMemory, view, len(latest))
	return nil
}

func (s *TreapStore) RangeView(_ context.Context, view string, n int) ([]ViewEntry, error) {
	defer observe("range_view", time.Now())

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	root := s.views[view]
	s.mu.RUnlock()

	out := make([]ViewEntry, 0, min(n, nsize(root)))
	collectBottomN(root, n, &out)
	return out, nil
}

func (s *TreapStore) Flush(_ context.Context) error {
	s.mu.Lock()
	s.docs = make(map[string][]byte)
	s.sets = make(map[string]map[string][]byte)
	s.views = make(map[string]*node)
	s.mu.Unlock()
	return nil
}

// startMetricsUpdater starts a background goroutine that updates store metrics
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *TreapStore) updateMetrics() {
	s.mu.RLock()
	docs := len(s.docs)
	members := 0
	for _, set := range s.sets {
		members += len(set)
	}
	s.mu.RUnlock()

	metrics.UpdateStoreRecords(backendMemory, "documents", docs)
	metrics.UpdateStoreRecords(backendMemory, "set_members", members)
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(backendMemory, op, float64(time.Since(start).Milliseconds()))
}
