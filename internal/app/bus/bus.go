// Package bus connects components through typed request/reply endpoints.
// Every endpoint is a bounded queue drained by a fixed-size worker pool.
package bus

import (
	"context"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/internal/adapters/mq/queue"
	"github.com/okian/cachegate/internal/adapters/mq/worker"
	"github.com/okian/cachegate/pkg/logger"
)

// Handler serves one request.
type Handler[Req, Res any] func(ctx context.Context, req Req) (Res, error)

type reply[Res any] struct {
	res Res
	err error
}

type envelope[Req, Res any] struct {
	ctx   context.Context
	req   Req
	reply chan reply[Res]
}

// Endpoint accepts requests for one component.
type Endpoint[Req, Res any] struct {
	name   string
	queue  *queue.InMemoryQueue[envelope[Req, Res]]
	pool   *worker.Pool[envelope[Req, Res]]
	logger logger.Logger
}

// NewEndpoint builds an endpoint with workers goroutines behind a queue of
// the given capacity. Call Start before sending.
func NewEndpoint[Req, Res any](name string, workers, capacity int, handle Handler[Req, Res], opts ...Option) *Endpoint[Req, Res] {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("bus")
	}

	e := &Endpoint[Req, Res]{
		name:   name,
		queue:  queue.NewInMemoryQueue[envelope[Req, Res]](queue.WithCapacity(capacity), queue.WithName(name)),
		logger: s.logger.Named(name),
	}
	e.pool = worker.NewPool[envelope[Req, Res]](name, workers, e.queue, func(_ context.Context, env envelope[Req, Res]) (err error) {
		var res Res
		defer func() {
			if r := recover(); r != nil {
				err = errors.Newf(errors.CodeInternal, "%s: handler panicked: %v", name, r)
			}
			if env.reply != nil {
				env.reply <- reply[Res]{res: res, err: err}
			}
		}()
		res, err = handle(env.ctx, env.req)
		return err
	}, worker.WithLogger(e.logger))
	return e
}

// Name returns the endpoint label.
func (e *Endpoint[Req, Res]) Name() string { return e.name }

// Start launches the workers.
func (e *Endpoint[Req, Res]) Start(ctx context.Context) {
	e.pool.Start(ctx)
}

// Stop closes the queue and waits for in-hand requests.
func (e *Endpoint[Req, Res]) Stop(ctx context.Context) error {
	return e.pool.Shutdown(ctx)
}

// Len returns the number of requests waiting.
func (e *Endpoint[Req, Res]) Len(ctx context.Context) int { return e.queue.Len(ctx) }

// Drain waits until every queued request has been picked up or ctx is done.
func (e *Endpoint[Req, Res]) Drain(ctx context.Context) error { return e.queue.WaitEmpty(ctx) }

// Capacity returns the queue bound.
func (e *Endpoint[Req, Res]) Capacity() int { return e.queue.Capacity() }

// Call sends req and waits for the reply or for ctx. The request keeps
// running after ctx is done; only the wait is abandoned.
func (e *Endpoint[Req, Res]) Call(ctx context.Context, req Req) (Res, error) {
	var zero Res
	env := envelope[Req, Res]{
		ctx:   context.WithoutCancel(ctx),
		req:   req,
		reply: make(chan reply[Res], 1),
	}
	if err := e.enqueue(ctx, env); err != nil {
		return zero, err
	}

	select {
	case r := <-env.reply:
		return r.res, r.err
	case <-ctx.Done():
		return zero, errors.Wrapf(ctx.Err(), errors.CodeTimeout, "%s: gave up waiting for reply", e.name)
	}
}

// Send enqueues req without waiting for a reply.
func (e *Endpoint[Req, Res]) Send(ctx context.Context, req Req) error {
	return e.enqueue(ctx, envelope[Req, Res]{ctx: context.WithoutCancel(ctx), req: req})
}

func (e *Endpoint[Req, Res]) enqueue(ctx context.Context, env envelope[Req, Res]) error {
	if e.queue.IsClosed() {
		return errors.Wrapf(queue.ErrClosed, errors.CodeUnavailable, "%s: %s", e.name, queue.ErrClosed.Message())
	}
	if !e.queue.Enqueue(ctx, env) {
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), errors.CodeTimeout, "%s: enqueue cancelled", e.name)
		}
		return errors.Wrapf(queue.ErrFull, errors.CodeUnavailable, "%s: %s", e.name, queue.ErrFull.Message())
	}
	return nil
}
