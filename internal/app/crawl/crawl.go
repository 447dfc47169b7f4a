// Package crawl follows listing continuations. Each announced next page
// becomes one bounded task instead of a recursive chain of fetches.
package crawl

import (
	"context"
	"net/url"
	"strconv"

	"github.com/okian/cachegate/internal/app/bus"
	"github.com/okian/cachegate/internal/domain/dedupe"
	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/pkg/logger"
	"github.com/okian/cachegate/pkg/metrics"
)

const (
	defaultWorkers  = 4
	defaultCapacity = 1000
	defaultMaxPages = 100
)

// Drop reasons.
const (
	DropFull      = "full"
	DropDepth     = "depth"
	DropDuplicate = "duplicate"
	DropInvalid   = "invalid"
)

// Sink fills one page, usually Dispatcher.Dispatch.
type Sink func(ctx context.Context, req model.Request) (model.Result, error)

// Crawler queues continuation pages and fills them through a Sink.
type Crawler struct {
	sink     Sink
	endpoint *bus.Endpoint[model.Request, struct{}]
	inflight dedupe.Deduper
	maxPages int
	logger   logger.Logger
}

// New builds a crawler. Call Start before submitting.
func New(sink Sink, opts ...Option) *Crawler {
	s := settings{
		workers:  defaultWorkers,
		capacity: defaultCapacity,
		maxPages: defaultMaxPages,
		logger:   logger.Get().Named("crawl"),
	}
	for _, opt := range opts {
		opt(&s)
	}

	c := &Crawler{
		sink:     sink,
		inflight: dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.capacity + s.workers + 1)),
		maxPages: s.maxPages,
		logger:   s.logger,
	}
	c.endpoint = bus.NewEndpoint[model.Request, struct{}]("crawl", s.workers, s.capacity, c.handle, bus.WithLogger(s.logger))
	return c
}

// Start launches the crawl workers.
func (c *Crawler) Start(ctx context.Context) { c.endpoint.Start(ctx) }

// Stop closes the queue and waits for the pages in hand.
func (c *Crawler) Stop(ctx context.Context) error { return c.endpoint.Stop(ctx) }

// Drain waits until every queued page has been picked up or ctx is done.
func (c *Crawler) Drain(ctx context.Context) error { return c.endpoint.Drain(ctx) }

// Len returns the number of queued pages.
func (c *Crawler) Len(ctx context.Context) int { return c.endpoint.Len(ctx) }

// Submit queues next for setKey. It never blocks; it reports whether the
// page was accepted.
func (c *Crawler) Submit(setKey, next string) bool {
	ctx := context.Background()

	page, ok := pageNumber(next)
	if !ok {
		c.drop(ctx, DropInvalid, setKey, next)
		return false
	}
	if page > c.maxPages {
		c.drop(ctx, DropDepth, setKey, next)
		return false
	}

	id := setKey + "|" + next
	if c.inflight.SeenAndRecord(ctx, id) {
		c.drop(ctx, DropDuplicate, setKey, next)
		return false
	}
	if err := c.endpoint.Send(ctx, model.Request{Kind: model.KindSet, Path: next, SetKey: setKey}); err != nil {
		c.inflight.Unrecord(ctx, id)
		c.drop(ctx, DropFull, setKey, next)
		return false
	}
	metrics.RecordCrawlEnqueued()
	return true
}

func (c *Crawler) handle(ctx context.Context, req model.Request) (struct{}, error) {
	defer c.inflight.Unrecord(ctx, req.SetKey+"|"+req.Path)

	_, err := c.sink(ctx, req)
	metrics.RecordCrawlPage(err == nil)
	if err != nil {
		c.logger.Warn(ctx, "page fill failed",
			logger.String("set", req.SetKey),
			logger.String("path", req.Path),
			logger.Error(err),
		)
	}
	return struct{}{}, err
}

func (c *Crawler) drop(ctx context.Context, reason, setKey, next string) {
	metrics.RecordCrawlDropped(reason)
	c.logger.Debug(ctx, "continuation dropped",
		logger.String("reason", reason),
		logger.String("set", setKey),
		logger.String("path", next),
	)
}

// pageNumber reads the page query parameter. A path without one counts as
// the first page.
func pageNumber(path string) (int, bool) {
	u, err := url.Parse(path)
	if err != nil {
		return 0, false
	}
	raw := u.Query().Get("page")
	if raw == "" {
		return 1, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
