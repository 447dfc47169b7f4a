// Package dispatch routes requests to the component that serves them.
package dispatch

import (
	"context"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/internal/adapters/upstream"
	"github.com/okian/cachegate/internal/app/bus"
	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/pkg/logger"
)

// Caller answers a model.Request, typically the cache endpoint.
type Caller interface {
	Call(ctx context.Context, req model.Request) (model.Result, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, req model.Request) (model.Result, error)

func (f CallerFunc) Call(ctx context.Context, req model.Request) (model.Result, error) {
	return f(ctx, req)
}

// Dispatcher forwards key, set and rank requests to the cache and raw
// requests upstream. It does not look inside requests or replies.
type Dispatcher struct {
	cache    Caller
	upstream upstream.Fetcher
	router   *bus.Endpoint[model.Request, model.Result]
	logger   logger.Logger
}

// New builds a dispatcher whose router endpoint has workers goroutines and
// a queue of capacity.
func New(cache Caller, fetcher upstream.Fetcher, workers, capacity int, opts ...Option) *Dispatcher {
	s := settings{logger: logger.Get().Named("dispatch")}
	for _, opt := range opts {
		opt(&s)
	}
	d := &Dispatcher{
		cache:    cache,
		upstream: fetcher,
		logger:   s.logger,
	}
	d.router = bus.NewEndpoint[model.Request, model.Result]("router", workers, capacity, d.Handle, bus.WithLogger(s.logger))
	return d
}

// Start launches the router workers.
func (d *Dispatcher) Start(ctx context.Context) { d.router.Start(ctx) }

// Stop drains the router.
func (d *Dispatcher) Stop(ctx context.Context) error { return d.router.Stop(ctx) }

// Len returns the number of requests waiting for a router worker.
func (d *Dispatcher) Len(ctx context.Context) int { return d.router.Len(ctx) }

// Dispatch sends req through the router and waits for the reply.
func (d *Dispatcher) Dispatch(ctx context.Context, req model.Request) (model.Result, error) {
	return d.router.Call(ctx, req)
}

// Send sends req through the router without waiting.
func (d *Dispatcher) Send(ctx context.Context, req model.Request) error {
	return d.router.Send(ctx, req)
}

// Handle routes one request. Replies and failures are relayed unchanged.
func (d *Dispatcher) Handle(ctx context.Context, req model.Request) (model.Result, error) {
	switch req.Kind {
	case model.KindKey, model.KindSet, model.KindRank:
		return d.cache.Call(ctx, req)
	case model.KindProxy:
		resp, err := d.upstream.Fetch(ctx, upstream.Request{Path: req.Path})
		if err != nil {
			return model.Result{}, err
		}
		return model.Result{Document: resp.Body, Status: resp.Status}, nil
	default:
		return model.Result{}, errors.Wrapf(ErrUnroutable, errors.CodeInvalidInput, "no route for %s request %q", req.Kind, req.Path)
	}
}
