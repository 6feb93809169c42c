package main

import (
	"math/big"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoPoolBench/internal/payload"
	"github.com/i5heu/GoPoolBench/internal/testbench"
	"github.com/i5heu/GoPoolBench/pkg/config"
	"github.com/i5heu/GoPoolBench/pkg/slotqueue"
)

// progressWatchdog monitors progress and fails the test if no progress is made for 15 seconds.
type progressWatchdog struct {
	t            *testing.T
	label        string
	lastProgress atomic.Int64
	done         chan struct{}
}

func newWatchdog(t *testing.T, label string) *progressWatchdog {
	wd := &progressWatchdog{
		t:     t,
		label: label,
		done:  make(chan struct{}),
	}
	wd.lastProgress.Store(time.Now().UnixNano())
	return wd
}

func (wd *progressWatchdog) Start() {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				last := wd.lastProgress.Load()
				elapsed := time.Since(time.Unix(0, last))
				if elapsed > 15*time.Second {
					wd.t.Errorf("No progress in the last 15 seconds (%s test likely stuck).", wd.label)
					return
				}
			case <-wd.done:
				return
			}
		}
	}()
}

func (wd *progressWatchdog) Progress() {
	wd.lastProgress.Store(time.Now().UnixNano())
}

func (wd *progressWatchdog) Stop() {
	close(wd.done)
}

// withAllQueues is a test helper that loops over all implementations
// and calls your test function for each one.
// NOTE: Feature filtering is done inside the subtest to avoid skipping at parent level.
func withAllQueues(t *testing.T, testedFeatures []string, fn func(t *testing.T, impl Implementation[*int])) {
	t.Helper()
	for _, impl := range getImplementations[*int]() {
		t.Run(impl.name, func(t *testing.T) {
			for _, feature := range testedFeatures {
				if !slices.Contains(impl.features, feature) {
					t.Skipf("Skipping: missing feature %q", feature)
				}
			}
			fn(t, impl)
		})
	}
}

// skipLockFreeUnderRace skips concurrent scenarios on lock-free queues when
// the race detector is on. It cannot see the acquire/release ordering that
// guards their slots; the channel baseline still runs.
func skipLockFreeUnderRace[T any](t *testing.T, impl Implementation[T]) {
	t.Helper()
	if slotqueue.RaceEnabled && slices.Contains(impl.features, "Lock-Free") {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}
}

// popWait spins on TryPop so a lost element shows up as a watchdog failure
// instead of a hung Pop.
func popWait(q interface{ TryPop() (*int, bool) }, wd *progressWatchdog) *int {
	for {
		if v, ok := q.TryPop(); ok {
			wd.Progress()
			return v
		}
		runtime.Gosched()
	}
}

func TestBasicFIFO(t *testing.T) {
	withAllQueues(t, []string{"FIFO"}, func(t *testing.T, impl Implementation[*int]) {
		q := impl.newQueue(1024)

		wd := newWatchdog(t, "BasicFIFO")
		wd.Start()
		defer wd.Stop()

		const N = 1024
		for i := 0; i < N; i++ {
			q.Push(payload.Int(i))
			wd.Progress()
		}
		for i := 0; i < N; i++ {
			v := popWait(q, wd)
			require.Equal(t, i, *v, "FIFO violated at position %d", i)
		}
	})
}

func TestEmptyQueue(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation[*int]) {
		q := impl.newQueue(8)

		for range 100 {
			v, ok := q.TryPop()
			assert.False(t, ok)
			assert.Nil(t, v)
		}
		assert.Equal(t, uint64(0), q.UsedSlots())
		assert.Equal(t, uint64(8), q.FreeSlots())
	})
}

func TestTryPushOnFullQueue(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation[*int]) {
		const capacity = 16
		q := impl.newQueue(capacity)

		for i := 0; i < capacity; i++ {
			require.True(t, q.TryPush(payload.Int(i)), "TryPush %d rejected below capacity", i)
		}
		assert.False(t, q.TryPush(payload.Int(capacity)))
		assert.Equal(t, uint64(0), q.FreeSlots())
		assert.Equal(t, uint64(capacity), q.UsedSlots())

		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, 0, *v)
		assert.True(t, q.TryPush(payload.Int(capacity)))
	})
}

func TestWrapAround(t *testing.T) {
	withAllQueues(t, []string{"FIFO"}, func(t *testing.T, impl Implementation[*int]) {
		const capacity = 8
		q := impl.newQueue(capacity)

		wd := newWatchdog(t, "WrapAround")
		wd.Start()
		defer wd.Stop()

		next := 0
		for round := 0; round < 50; round++ {
			// Partial fills move the cursors through every slot offset.
			n := round%capacity + 1
			for i := 0; i < n; i++ {
				q.Push(payload.Int(next + i))
			}
			for i := 0; i < n; i++ {
				v := popWait(q, wd)
				require.Equal(t, next+i, *v)
			}
			next += n
			require.Equal(t, uint64(0), q.UsedSlots())
		}
	})
}

func TestAlternatingSingleCapacity(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation[*int]) {
		q := impl.newQueue(1)

		wd := newWatchdog(t, "AlternatingSingleCapacity")
		wd.Start()
		defer wd.Stop()

		for i := 0; i < 1000; i++ {
			q.Push(payload.Int(i))
			require.False(t, q.TryPush(payload.Int(-1)), "capacity-1 queue accepted a second element")
			v := popWait(q, wd)
			require.Equal(t, i, *v)
		}
	})
}

func TestFullQueueBlocking(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation[*int]) {
		skipLockFreeUnderRace(t, impl)

		const capacity = 1024
		q := impl.newQueue(capacity)

		for i := 0; i < capacity; i++ {
			q.Push(payload.Int(i))
		}
		require.Equal(t, uint64(0), q.FreeSlots())
		require.Equal(t, uint64(capacity), q.UsedSlots())

		done := make(chan struct{})
		go func() {
			defer close(done)
			q.Push(payload.Int(9999))
		}()

		select {
		case <-done:
			t.Fatal("Expected Push to block, but goroutine completed immediately")
		case <-time.After(100 * time.Millisecond):
		}

		v := q.Pop()
		require.NotNil(t, v)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Push goroutine did not unblock after freeing a slot")
		}
		assert.Equal(t, uint64(capacity), q.UsedSlots())
	})
}

func TestPopBlocksUntilPush(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation[*int]) {
		skipLockFreeUnderRace(t, impl)

		q := impl.newQueue(4)

		got := make(chan int, 1)
		go func() {
			got <- *q.Pop()
		}()

		select {
		case <-got:
			t.Fatal("Pop returned on an empty queue")
		case <-time.After(100 * time.Millisecond):
		}

		q.Push(payload.Int(42))
		select {
		case v := <-got:
			assert.Equal(t, 42, v)
		case <-time.After(2 * time.Second):
			t.Fatal("Pop did not return after Push")
		}
	})
}

func TestHighContention(t *testing.T) {
	withAllQueues(t, []string{"MPMC"}, func(t *testing.T, impl Implementation[*int]) {
		skipLockFreeUnderRace(t, impl)

		const (
			producers   = 16
			consumers   = 16
			perProducer = 5000
			total       = producers * perProducer
		)
		q := impl.newQueue(64)

		wd := newWatchdog(t, "HighContention")
		wd.Start()
		defer wd.Stop()

		seen := make([]atomic.Int32, total)
		var consumed atomic.Int64

		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					q.Push(payload.Int(p*perProducer + i))
					wd.Progress()
				}
			}(p)
		}
		for c := 0; c < consumers; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for consumed.Add(1) <= total {
					v := q.Pop()
					seen[*v].Add(1)
					wd.Progress()
				}
			}()
		}
		wg.Wait()

		for i := range seen {
			if n := seen[i].Load(); n != 1 {
				t.Fatalf("element %d delivered %d times", i, n)
			}
		}
		assert.Equal(t, uint64(0), q.UsedSlots())
	})
}

func TestPerProducerOrderingSingleConsumer(t *testing.T) {
	withAllQueues(t, []string{"FIFO", "MPMC"}, func(t *testing.T, impl Implementation[*int]) {
		skipLockFreeUnderRace(t, impl)

		const (
			producers   = 8
			perProducer = 2000
		)
		q := impl.newQueue(32)

		wd := newWatchdog(t, "PerProducerOrdering")
		wd.Start()
		defer wd.Stop()

		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					q.Push(payload.Int(p*perProducer + i))
				}
			}(p)
		}

		last := make([]int, producers)
		for p := range last {
			last[p] = -1
		}
		for n := 0; n < producers*perProducer; n++ {
			v := *popWait(q, wd)
			p, seq := v/perProducer, v%perProducer
			require.Greater(t, seq, last[p], "producer %d reordered", p)
			last[p] = seq
		}
		wg.Wait()
	})
}

func TestBigIntPayloadIntegrity(t *testing.T) {
	for _, impl := range getImplementations[*big.Int]() {
		t.Run(impl.name, func(t *testing.T) {
			skipLockFreeUnderRace(t, impl)

			q := impl.newQueue(16)
			go func() {
				for i := 0; i < 200; i++ {
					q.Push(payload.BigInt(i))
				}
			}()
			for i := 0; i < 200; i++ {
				got := q.Pop()
				assert.Equal(t, uint32(i), uint32(got.Uint64()), "low word of element %d", i)
				assert.Greater(t, got.BitLen(), 32, "element %d lost its high limbs", i)
			}
		})
	}
}

func TestRunTimedTestCountsMatch(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation[*int]) {
		skipLockFreeUnderRace(t, impl)

		q := impl.newQueue(128)
		cfg := testbench.Config{NumProducers: 4, NumConsumers: 4}

		produced, consumed, elapsed := testbench.RunTimedTest(q, cfg, 200*time.Millisecond, payload.Int)

		assert.Positive(t, produced)
		assert.Equal(t, produced, consumed, "every produced message must be drained")
		assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	})
}

func TestBuildRunsHonorsMode(t *testing.T) {
	kind, err := payload.Lookup("int")
	require.NoError(t, err)

	bench := config.Default()
	bench.Duration = 50 * time.Millisecond

	bench.Mode = config.ModeQueue
	runs := buildRuns(bench, kind, nil)
	assert.Len(t, runs, len(getImplementations[*int]()))

	bench.Mode = config.ModePool
	runs = buildRuns(bench, kind, nil)
	require.Len(t, runs, 1)
	assert.Equal(t, poolImplementation, runs[0].name)

	bench.Mode = config.ModeAll
	runs = buildRuns(bench, kind, nil)
	assert.Len(t, runs, len(getImplementations[*int]())+1)
}

func TestPoolRunExecutesEveryAcceptedTask(t *testing.T) {
	if slotqueue.RaceEnabled {
		t.Skip("skip: the pool queue uses cross-variable memory ordering")
	}

	for _, name := range payload.Names() {
		t.Run(name, func(t *testing.T) {
			kind, err := payload.Lookup(name)
			require.NoError(t, err)

			bench := config.Default()
			bench.Mode = config.ModePool
			bench.Duration = 100 * time.Millisecond
			bench.QueueCapacity = 64

			runs := buildRuns(bench, kind, nil)
			require.Len(t, runs, 1)
			accepted, executed, _ := runs[0].exec(testbench.Config{NumProducers: 4, NumConsumers: 3})
			assert.Positive(t, accepted)
			assert.Equal(t, accepted, executed)
		})
	}
}

func TestCPUSettings(t *testing.T) {
	assert.Equal(t, []int{4}, cpuSettingsFor(4, 8))
	assert.Equal(t, []int{8}, cpuSettingsFor(64, 8))
	assert.Equal(t, []int{1, 2, 3, 4, 6}, cpuSettingsFor(0, 6))
}

func TestImplementationMetaCoversEveryRun(t *testing.T) {
	meta := implementationMeta()
	for _, impl := range getImplementations[*int]() {
		assert.Contains(t, meta, impl.name)
	}
	assert.Contains(t, meta, poolImplementation)
	for name, m := range meta {
		assert.NotEmpty(t, m.PkgName, name)
		assert.NotEmpty(t, m.Features, name)
	}
}

func BenchmarkPushPop(b *testing.B) {
	for _, impl := range getImplementations[*int]() {
		b.Run(impl.name, func(b *testing.B) {
			q := impl.newQueue(1024)
			v := payload.Int(1)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				q.Push(v)
				q.Pop()
			}
		})
	}
}
