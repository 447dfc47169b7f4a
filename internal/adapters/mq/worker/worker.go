// Package worker runs fixed-size pools of goroutines that drain a queue and
// hand every message to a handler.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/cachegate/pkg/logger"
	"github.com/okian/cachegate/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 20
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Handler processes one message.
type Handler[T any] func(ctx context.Context, m T) error

// Queue defines how workers receive messages.
type Queue[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Worker drains messages until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker once the message in hand is done.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker over a shared message channel.
type InMemoryWorker[T any] struct {
	messages <-chan T
	handle   Handler[T]
	name     string
	pool     string
	onDone   func()

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from messages.
func NewInMemoryWorker[T any](messages <-chan T, handle Handler[T], opts ...Option) *InMemoryWorker[T] {
	s := settings{name: "worker", pool: "default"}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("worker")
	}

	return &InMemoryWorker[T]{
		messages: messages,
		handle:   handle,
		name:     s.name,
		pool:     s.pool,
		onDone:   s.onDone,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   s.logger.Named(s.name),
	}
}

// Run starts the worker loop.
func (w *InMemoryWorker[T]) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case m, ok := <-w.messages:
			if !ok {
				return
			}
			w.process(ctx, m)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker[T]) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs the handler, converting panics into logged errors so one bad
// message cannot take a worker down.
func (w *InMemoryWorker[T]) process(ctx context.Context, m T) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerError(w.pool)
			metrics.RecordErrorByComponent("worker", "panic")
			w.logger.Error(ctx, "handler panicked", logger.Any("panic", r))
		}
		metrics.RecordWorkerProcessingLatency(w.pool, float64(time.Since(start).Milliseconds()))
		if w.onDone != nil {
			w.onDone()
		}
	}()

	if err := w.handle(ctx, m); err != nil {
		metrics.RecordWorkerError(w.pool)
		w.logger.Debug(ctx, "handler failed", logger.Error(err))
	}
}

// Pool manages a fixed number of workers sharing one queue.
type Pool[T any] struct {
	name    string
	queue   Queue[T]
	handle  Handler[T]
	count   int
	workers []*InMemoryWorker[T]

	shutdown     chan struct{}
	shutdownOnce sync.Once

	processedCount    atomic.Int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates a new worker pool. A workerCount below 1 selects the
// default size.
func NewPool[T any](name string, workerCount int, queue Queue[T], handle Handler[T], opts ...Option) *Pool[T] {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("worker-pool")
	}

	return &Pool[T]{
		name:              name,
		queue:             queue,
		handle:            handle,
		count:             workerCount,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            s.logger.Named(name),
	}
}

// Name returns the pool label.
func (p *Pool[T]) Name() string { return p.name }

// Size returns the number of workers.
func (p *Pool[T]) Size() int { return p.count }

// Start starts all workers in the pool.
func (p *Pool[T]) Start(ctx context.Context) {
	messages := p.queue.Dequeue(ctx)
	p.workers = make([]*InMemoryWorker[T], p.count)
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(messages, p.handle,
			WithName(p.name+"-"+strconv.Itoa(i)),
			WithPool(p.name),
			WithLogger(p.logger),
			withOnDone(func() { p.processedCount.Add(1) }),
		)
		go p.workers[i].Run(ctx)
	}

	metrics.UpdateWorkerCount(p.name, p.count)
	metrics.UpdateWorkerMessagesPerSecond(p.name, 0)
	go p.startMetricsUpdater(ctx)

	p.logger.Info(ctx, "worker pool started", logger.Int("workers", p.count))
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool[T]) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool[T]) updateMetrics() {
	now := time.Now()
	if elapsed := now.Sub(p.lastProcessedTime).Seconds(); elapsed > 0 {
		metrics.UpdateWorkerMessagesPerSecond(p.name, float64(p.processedCount.Swap(0))/elapsed)
	}
	p.lastProcessedTime = now
}

// Processed returns the number of messages handled since the last metrics
// tick.
func (p *Pool[T]) Processed() int64 { return p.processedCount.Load() }

// Shutdown closes the queue when it can be closed, then waits for the
// workers to finish the messages in hand.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(p.name, 0)
	return nil
}
