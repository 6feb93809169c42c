package threadpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"code.hybscloud.com/atomix"

	"github.com/i5heu/GoPoolBench/pkg/slotqueue"
	"github.com/i5heu/GoPoolBench/pkg/waitgroup"
)

// Pool runs tasks of one func-shaped type on a fixed set of workers.
//
// Admission goes through a waitgroup.WaitGroup and storage through a
// slotqueue.Queue. Enqueue blocks while the queue is full, which throttles
// producers to the rate the workers sustain.
type Pool[F ~func()] struct {
	logger  *slog.Logger
	onPanic func(any)

	workers int
	queue   *slotqueue.Queue[F]
	gate    *waitgroup.WaitGroup

	workersWG sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	accepted atomix.Uint64
	rejected atomix.Uint64
	executed atomix.Uint64
	panicked atomix.Uint64
}

// New creates a pool of workers goroutines sharing a queue of
// queueCapacity tasks. Workers do not run until Start.
func New[F ~func()](workers int, queueCapacity uint64, opts ...Option) *Pool[F] {
	if workers <= 0 {
		panic("threadpool: workers must be > 0")
	}
	c := defaultConfig()
	for _, o := range opts {
		o(&c)
	}
	return &Pool[F]{
		logger:  c.logger,
		onPanic: c.onPanic,
		workers: workers,
		queue:   slotqueue.New[F](queueCapacity),
		gate:    waitgroup.New(0),
	}
}

// Start launches the workers. Calls after the first are no-ops.
func (p *Pool[F]) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("thread pool starting",
			slog.Int("workers_count", p.workers),
			slog.Uint64("queue_capacity", p.queue.Cap()))
		p.workersWG.Add(p.workers)
		for i := range p.workers {
			go p.worker(i)
		}
	})
}

func (p *Pool[F]) worker(id int) {
	defer p.workersWG.Done()
	for p.gate.WaitAndDec() {
		p.run(p.queue.Pop())
	}
	p.logger.Debug("worker observed termination", slog.Int("worker_id", id))
}

func (p *Pool[F]) run(task F) {
	if p.onPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				p.panicked.Add(1)
				p.onPanic(r)
			}
		}()
	}
	task()
	p.executed.Add(1)
}

// Enqueue admits task for execution. It returns false, without running the
// task, once Stop has begun. Otherwise it may block until the queue has
// room, and returns true.
func (p *Pool[F]) Enqueue(task F) bool {
	if !p.gate.Inc() {
		p.rejected.Add(1)
		return false
	}
	p.accepted.Add(1)
	p.queue.Push(task)
	return true
}

// Stop halts admission, waits until every admitted task has been claimed,
// and joins the workers, so every accepted task has run when it returns.
// Workers are started if Start was never called. Stop is idempotent.
func (p *Pool[F]) Stop() {
	_ = p.StopContext(context.Background())
}

// StopContext is Stop bounded by ctx. If ctx ends first, admission stays
// closed, workers keep draining in the background, and the context error is
// returned. A later Stop waits for the remainder.
func (p *Pool[F]) StopContext(ctx context.Context) error {
	p.Start()
	p.stopOnce.Do(func() {
		p.logger.Info("thread pool shutting down", slog.Int64("pending", p.gate.Count()))
		p.gate.Block()
	})
	if err := p.gate.Wait(ctx); err != nil {
		return fmt.Errorf("threadpool: stop: %w", err)
	}

	joined := make(chan struct{})
	go func() {
		p.workersWG.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-ctx.Done():
		return fmt.Errorf("threadpool: joining workers: %w", ctx.Err())
	}
	p.logger.Info("thread pool shutdown completed", slog.Uint64("executed", p.executed.Load()))
	return nil
}

// Stopped reports whether admission has been closed.
func (p *Pool[F]) Stopped() bool {
	return p.gate.Blocked()
}

// Workers returns the number of worker goroutines.
func (p *Pool[F]) Workers() int {
	return p.workers
}

// Stats is a snapshot of the pool counters. Executed counts tasks that
// returned normally; Panicked counts those recovered by the panic handler.
type Stats struct {
	Accepted uint64
	Rejected uint64
	Executed uint64
	Panicked uint64
	Queued   uint64
}

// Stats returns the current counters. Fields are read independently and may
// be mutually inconsistent while the pool is busy.
func (p *Pool[F]) Stats() Stats {
	return Stats{
		Accepted: p.accepted.Load(),
		Rejected: p.rejected.Load(),
		Executed: p.executed.Load(),
		Panicked: p.panicked.Load(),
		Queued:   p.queue.UsedSlots(),
	}
}
