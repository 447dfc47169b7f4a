package repository

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/pkg/metrics"
	"github.com/okian/cachegate/pkg/tracing"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const backendRedis = "redis"

// Key layout under the configured prefix:
//
//	doc:<path>        STRING  raw document
//	set:<key>         HASH    stable id -> payload
//	lb:<view>         ZSET    repo full name scored by the view
const (
	docSpace  = "doc:"
	setSpace  = "set:"
	viewSpace = "lb:"

	flushScanCount = 500
)

// RedisStore implements Store on Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an already connected client. The store owns the
// client from here on and closes it on Close.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisStore{client: client, prefix: o.keyPrefix}
}

func (s *RedisStore) docKey(path string) string { return s.prefix + docSpace + path }
func (s *RedisStore) setKey(key string) string  { return s.prefix + setSpace + key }
func (s *RedisStore) viewKey(view string) string {
	return s.prefix + viewSpace + view
}

// op starts a span and latency measurement for one store operation. The
// returned func records the outcome.
func (s *RedisStore) op(ctx context.Context, name, command string) (context.Context, func(error) error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "redis."+name,
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", command),
	)
	return ctx, func(err error) error {
		metrics.RecordStoreLatency(backendRedis, name, float64(time.Since(start).Milliseconds()))
		if err == nil || errors.Is(err, ErrNotFound) {
			tracing.End(span, nil)
			return err
		}
		metrics.RecordStoreError(backendRedis, name)
		err = errors.Wrapf(err, errors.CodeUnavailable, "%s: %s", ErrBackend.Message(), name)
		tracing.End(span, err)
		return err
	}
}

func (s *RedisStore) GetDocument(ctx context.Context, path string) ([]byte, error) {
	ctx, done := s.op(ctx, "get_document", "GET")
	body, err := s.client.Get(ctx, s.docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, done(ErrNotFound)
	}
	if err != nil {
		return nil, done(err)
	}
	return body, done(nil)
}

func (s *RedisStore) PutDocument(ctx context.Context, path string, body []byte) error {
	ctx, done := s.op(ctx, "put_document", "SET")
	return done(s.client.Set(ctx, s.docKey(path), body, 0).Err())
}

func (s *RedisStore) GetMembers(ctx context.Context, key string) ([][]byte, error) {
	ctx, done := s.op(ctx, "get_members", "HGETALL")
	all, err := s.client.HGetAll(ctx, s.setKey(key)).Result()
	if err != nil {
		return nil, done(err)
	}
	if len(all) == 0 {
		return nil, done(ErrNotFound)
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, []byte(all[id]))
	}
	return out, done(nil)
}

func (s *RedisStore) AddMembers(ctx context.Context, key string, members []Member) error {
	if len(members) == 0 {
		return nil
	}
	ctx, done := s.op(ctx, "add_members", "HSET")

	values := make([]any, 0, 2*len(members))
	for _, m := range members {
		values = append(values, m.ID, m.Payload)
	}
	return done(s.client.HSet(ctx, s.setKey(key), values...).Err())
}

// ReplaceView deletes and refills the sorted set inside MULTI/EXEC so
// readers never see a partial generation.
func (s *RedisStore) ReplaceView(ctx context.Context, view string, entries []ViewEntry) error {
	ctx, done := s.op(ctx, "replace_view", "MULTI")
	key := s.viewKey(view)

	zs := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		zs = append(zs, redis.Z{Score: e.Score, Member: e.Key})
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(zs) > 0 {
			pipe.ZAdd(ctx, key, zs...)
		}
		return nil
	})
	if err == nil {
		metrics.UpdateStoreRecords(backendRedis, view, len(zs))
	}
	return done(err)
}

// rangeWithTies reads the lowest ARGV[1] members and, when the range is
// full, every member tied with the last score. Running it as one script
// keeps both reads on the same generation.
var rangeWithTies = redis.NewScript(`
local n = tonumber(ARGV[1])
local head = redis.call('ZRANGE', KEYS[1], 0, n - 1, 'WITHSCORES')
if #head < 2 * n then
  return head
end
local b = head[#head]
local ties = redis.call('ZRANGEBYSCORE', KEYS[1], b, b, 'WITHSCORES')
for i = 1, #ties do
  head[#head + 1] = ties[i]
end
return head
`)

// RangeView reads the lowest n members. Redis orders equal scores by member
// ascending, so every member tied with the last returned score is pulled in
// as well and the caller picks among them.
func (s *RedisStore) RangeView(ctx context.Context, view string, n int) ([]ViewEntry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	ctx, done := s.op(ctx, "range_view", "EVALSHA")

	flat, err := rangeWithTies.Run(ctx, s.client, []string{s.viewKey(view)}, n).StringSlice()
	if err != nil {
		return nil, done(err)
	}

	out := make([]ViewEntry, 0, len(flat)/2)
	seen := make(map[string]struct{}, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		if _, dup := seen[flat[i]]; dup {
			continue
		}
		score, err := strconv.ParseFloat(flat[i+1], 64)
		if err != nil {
			return nil, done(err)
		}
		seen[flat[i]] = struct{}{}
		out = append(out, ViewEntry{Key: flat[i], Score: score})
	}
	return out, done(nil)
}

// Flush deletes every key under the prefix. Other data in the same database
// is left alone.
func (s *RedisStore) Flush(ctx context.Context) error {
	ctx, done := s.op(ctx, "flush", "SCAN")

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", flushScanCount).Result()
		if err != nil {
			return done(err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return done(err)
			}
		}
		cursor = next
		if cursor == 0 {
			return done(nil)
		}
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, done := s.op(ctx, "ping", "PING")
	return done(s.client.Ping(ctx).Err())
}
