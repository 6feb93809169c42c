package testbench

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/iox"

	"github.com/i5heu/GoPoolBench/internal/queue"
	"github.com/i5heu/GoPoolBench/pkg/threadpool"
)

// Config is only about concurrency: how many producers, how many consumers.
// In pool runs the consumers are the pool workers.
type Config struct {
	NumProducers int
	NumConsumers int
}

// RunTimedTest spawns producers and consumers that run for the specified
// duration, measuring how many messages are actually enqueued/dequeued
// in that window. Once the context expires, producers stop and consumers
// drain any remaining messages in the queue.
// Returns the total messages enqueued, total consumed, and the actual elapsed time.
func RunTimedTest[T any, Q queue.QueueValidationInterface[T]](
	q Q,
	cfg Config,
	testDuration time.Duration,
	valueGenerator func(int) T,
) (producedCount int64, consumedCount int64, elapsed time.Duration) {

	// Create a context that will cancel after testDuration.
	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	var totalProduced int64
	var totalConsumed int64

	start := time.Now()

	var msgIndex int64
	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)

	// productionDone will be set to 1 when test duration expires,
	// producersExited once every producer has returned from its last Push.
	var productionDone int32 = 0
	var producersExited int32 = 0

	go func() {
		<-ctx.Done()
		atomic.StoreInt32(&productionDone, 1)
	}()

	for i := 0; i < cfg.NumProducers; i++ {
		go func() {
			defer prodWg.Done()
			for atomic.LoadInt32(&productionDone) == 0 {
				idx := atomic.AddInt64(&msgIndex, 1) - 1
				q.Push(valueGenerator(int(idx)))
				atomic.AddInt64(&totalProduced, 1)
			}
		}()
	}

	var consWg sync.WaitGroup
	consWg.Add(cfg.NumConsumers)
	for i := 0; i < cfg.NumConsumers; i++ {
		go func() {
			defer consWg.Done()
			backoff := iox.Backoff{}
			for {
				if err := consumeOne(q); !iox.IsWouldBlock(err) {
					backoff.Reset()
					atomic.AddInt64(&totalConsumed, 1)
					continue
				}
				// Empty: exit once producers are gone and the queue is drained.
				if atomic.LoadInt32(&producersExited) == 1 && q.UsedSlots() == 0 {
					return
				}
				backoff.Wait()
			}
		}()
	}

	<-ctx.Done()
	prodWg.Wait()
	atomic.StoreInt32(&producersExited, 1)
	consWg.Wait()

	elapsed = time.Since(start)
	producedCount = atomic.LoadInt64(&totalProduced)
	consumedCount = atomic.LoadInt64(&totalConsumed)
	return producedCount, consumedCount, elapsed
}

// consumeOne pops one element, reporting iox.ErrWouldBlock on an empty queue.
func consumeOne[T any, Q queue.QueueValidationInterface[T]](q Q) error {
	if _, ok := q.TryPop(); !ok {
		return iox.ErrWouldBlock
	}
	return nil
}

// RunPoolTest enqueues tasks from cfg.NumProducers goroutines into a pool of
// cfg.NumConsumers workers for testDuration, then stops the pool.
// Returns accepted tasks, executed tasks and the elapsed time including the
// drain. After Stop, executed equals accepted.
func RunPoolTest(
	cfg Config,
	queueCapacity uint64,
	testDuration time.Duration,
	taskGenerator func(int) func(),
	opts ...threadpool.Option,
) (acceptedCount int64, executedCount int64, elapsed time.Duration) {

	pool := threadpool.New[func()](cfg.NumConsumers, queueCapacity, opts...)
	pool.Start()

	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	start := time.Now()

	var msgIndex atomic.Int64
	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)
	for i := 0; i < cfg.NumProducers; i++ {
		go func() {
			defer prodWg.Done()
			for ctx.Err() == nil {
				if !pool.Enqueue(taskGenerator(int(msgIndex.Add(1) - 1))) {
					return
				}
			}
		}()
	}

	<-ctx.Done()
	pool.Stop()
	prodWg.Wait()

	elapsed = time.Since(start)
	stats := pool.Stats()
	return int64(stats.Accepted), int64(stats.Executed), elapsed
}
