package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"runtime"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/i5heu/GoPoolBench/internal/payload"
	"github.com/i5heu/GoPoolBench/internal/queue"
	"github.com/i5heu/GoPoolBench/internal/report"
	"github.com/i5heu/GoPoolBench/internal/testbench"
	"github.com/i5heu/GoPoolBench/pkg/buffered"
	"github.com/i5heu/GoPoolBench/pkg/config"
	"github.com/i5heu/GoPoolBench/pkg/slotqueue"
	"github.com/i5heu/GoPoolBench/pkg/threadpool"
)

// Implementation represents a queue implementation.
type Implementation[T any] struct {
	name        string
	description string
	pkgName     string
	authors     []string
	features    []string
	newQueue    func(capacity uint64) queue.QueueValidationInterface[T]
}

const poolImplementation = "ThreadPool"

var authors = []string{"Mia Heidenstedt <heidenstedt.org>"}

// getImplementations enumerates the queue implementations for payload type T.
func getImplementations[T any]() []Implementation[T] {
	return []Implementation[T]{
		{
			name:        "Golang Buffered Channel",
			pkgName:     "buffered",
			description: "A buffered channel behind the queue contract, the baseline everything else is compared to.",
			authors:     authors,
			features:    []string{"MPMC", "FIFO"},
			newQueue: func(capacity uint64) queue.QueueValidationInterface[T] {
				return buffered.New[T](capacity)
			},
		},
		{
			name:        "SlotQueue",
			pkgName:     "slotqueue",
			description: "A lock-free MPMC queue with CAS-claimed cursors and per-slot read/write turnstiles.",
			authors:     authors,
			features:    []string{"MPMC", "FIFO", "Lock-Free", "Turnstile"},
			newQueue: func(capacity uint64) queue.QueueValidationInterface[T] {
				return slotqueue.New[T](capacity)
			},
		},
	}
}

// implementationMeta returns table metadata for every implementation name.
func implementationMeta() map[string]report.Meta {
	meta := make(map[string]report.Meta)
	for _, impl := range getImplementations[*int]() {
		meta[impl.name] = report.Meta{PkgName: impl.pkgName, Authors: impl.authors, Features: impl.features}
	}
	meta[poolImplementation] = report.Meta{
		PkgName:  "threadpool",
		Authors:  authors,
		Features: []string{"Backpressure", "Parking Workers", "Graceful Stop"},
	}
	return meta
}

// run is one benchmark execution, reported back as produced/consumed counts.
type run struct {
	name string
	mode string
	exec func(cfg testbench.Config) (produced, consumed int64, took time.Duration)
}

// queueRuns builds the queue runs for payload type T.
func queueRuns[T any](bench config.Bench, gen func(int) T) []run {
	var runs []run
	for _, impl := range getImplementations[T]() {
		runs = append(runs, run{
			name: impl.name,
			mode: config.ModeQueue,
			exec: func(cfg testbench.Config) (int64, int64, time.Duration) {
				q := impl.newQueue(bench.QueueCapacity)
				return testbench.RunTimedTest(q, cfg, bench.Duration, gen)
			},
		})
	}
	return runs
}

func buildRuns(bench config.Bench, kind payload.Kind, logger *slog.Logger) []run {
	var runs []run
	if bench.RunsQueues() {
		switch kind.Name {
		case "bigint":
			runs = append(runs, queueRuns[*big.Int](bench, payload.BigInt)...)
		default:
			runs = append(runs, queueRuns[*int](bench, payload.Int)...)
		}
	}
	if bench.RunsPool() {
		runs = append(runs, run{
			name: poolImplementation,
			mode: config.ModePool,
			exec: func(cfg testbench.Config) (int64, int64, time.Duration) {
				return testbench.RunPoolTest(cfg, bench.QueueCapacity, bench.Duration, kind.Task,
					threadpool.WithLogger(logger))
			},
		})
	}
	return runs
}

func main() {
	testIterations := flag.Int("iter", 5, "Number of test iterations per concurrency setting")
	cpuMaxFlag := flag.Int("cpu", 0, "If non-zero, test only that GOMAXPROCS value; if 0, test common CPU/vCPU values up to runtime.NumCPU()")
	jsonExport := flag.Bool("json", false, "Export results as JSON to the results file")
	highConcurrency := flag.Bool("high-concurrency", false, "Include high concurrency configurations")
	markdownTable := flag.Bool("markdown-table", false, "Output markdown table from the results file and exit")
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to the JSON results file")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	duration := flag.Duration("duration", 5*time.Second, "Duration of each timed run")
	mode := flag.String("mode", config.ModeAll, "What to benchmark: queue, pool or all")
	payloadFlag := flag.String("payload", "int", "Payload kind: int or bigint")
	capacity := flag.Uint64("capacity", 1024, "Queue capacity")
	modulusFlag := flag.String("modulus", "", "Decimal modulus for bigint pool work (default 2^127-1)")
	configPath := flag.String("config", "", "Optional YAML or JSON config file; explicit flags override it")
	verbose := flag.Bool("v", false, "Log pool lifecycle events to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	bench := config.Default()
	if *configPath != "" {
		var err error
		if bench, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config %q: %v\n", *configPath, err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "iter":
			bench.Iterations = *testIterations
		case "cpu":
			bench.CPU = *cpuMaxFlag
		case "high-concurrency":
			bench.HighConcurrency = *highConcurrency
		case "jsonfile":
			bench.ResultsFile = *jsonFile
		case "duration":
			bench.Duration = *duration
		case "mode":
			bench.Mode = *mode
		case "payload":
			bench.Payload = *payloadFlag
		case "capacity":
			bench.QueueCapacity = *capacity
		case "modulus":
			bench.Modulus = *modulusFlag
		}
	})
	if bench.HighConcurrency {
		bench.Concurrency = append(bench.Concurrency, config.HighConcurrency()...)
	}

	if *markdownTable {
		outputMarkdownTable(bench.ResultsFile)
		return
	}

	if err := bench.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error in configuration: %v\n", err)
		os.Exit(1)
	}
	modulus := payload.DefaultModulus
	if bench.Modulus != "" {
		m, err := payload.ParseModulus(bench.Modulus)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error in configuration: %v\n", err)
			os.Exit(1)
		}
		modulus = m
	}
	kind, err := payload.LookupModulus(bench.Payload, modulus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	trueCpuCount := runtime.NumCPU()
	cpuSettings := cpuSettingsFor(bench.CPU, trueCpuCount)

	runs := buildRuns(bench, kind, logger)
	totalTests := len(cpuSettings) * len(bench.Concurrency) * bench.Iterations * len(runs)

	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(totalTests,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Benchmarking"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
	}

	var allSessions []report.FullReport

	for _, cpus := range cpuSettings {
		runtime.GOMAXPROCS(cpus)
		sysInfo := report.GatherSystemInfo()
		sysInfo.NumCPU = cpus
		sysInfo.TrueCPU = trueCpuCount
		sysInfo.SimulatedCPUCount = cpus

		fmt.Printf("\n=============================\n")
		fmt.Printf("GOMAXPROCS = %d\n", cpus)
		fmt.Printf("=============================\n")

		var results []report.BenchmarkResult

		for _, c := range bench.Concurrency {
			cfg := testbench.Config{NumProducers: c.NumProducers, NumConsumers: c.NumConsumers}
			fmt.Printf("  [Concurrency: producers=%d, consumers=%d]\n", cfg.NumProducers, cfg.NumConsumers)
			for iteration := 1; iteration <= bench.Iterations; iteration++ {
				fmt.Printf("    iteration %d/%d\n", iteration, bench.Iterations)
				for _, r := range runs {
					runtime.GC()
					time.Sleep(250 * time.Millisecond)

					produced, consumed, actualTime := r.exec(cfg)
					throughput := float64(consumed) / actualTime.Seconds()

					if r.mode == config.ModePool && produced != consumed {
						logger.Error("pool lost tasks",
							slog.Int64("accepted", produced), slog.Int64("executed", consumed))
					}

					fmt.Printf("    %s => produced=%d, consumed=%d, throughput=%.0f msg/s, took=%v\n",
						r.name, produced, consumed, throughput, actualTime)
					if bar != nil {
						_ = bar.Add(1)
					}

					results = append(results, report.BenchmarkResult{
						Implementation:      r.name,
						Mode:                r.mode,
						Payload:             kind.Name,
						NumProducers:        cfg.NumProducers,
						NumConsumers:        cfg.NumConsumers,
						NumMessages:         produced,
						NumMessagesConsumed: consumed,
						TestDuration:        bench.Duration.String(),
						ActualElapsed:       actualTime.String(),
						Throughput:          throughput,
						Timestamp:           time.Now().Unix(),
						GoVersion:           runtime.Version(),
					})
				}
			}
		}

		allSessions = append(allSessions, report.FullReport{
			SessionTime: time.Now().Format(time.RFC3339),
			SystemInfo:  sysInfo,
			Benchmarks:  results,
		})
	}

	if bar != nil {
		_ = bar.Finish()
	}
	if kind.Modulus != nil && bench.RunsPool() {
		logger.Info("bigint work checksum",
			slog.String("modulus", kind.Modulus.String()),
			slog.Uint64("checksum", payload.Checksum()))
	}

	if *jsonExport {
		if err := report.Append(bench.ResultsFile, allSessions); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", bench.ResultsFile)
	}
}

// cpuSettingsFor returns the GOMAXPROCS values to test. A non-zero
// requested value is clamped to the machine; otherwise the common CPU/vCPU
// counts up to the machine size are used.
func cpuSettingsFor(requested, trueCpuCount int) []int {
	if requested > 0 {
		return []int{min(requested, trueCpuCount)}
	}
	commonCPUs := []int{1, 2, 3, 4, 6, 8, 12, 16, 32, 48, 56, 64, 96, 128, 192, 256, 384, 512}
	var out []int
	for _, v := range commonCPUs {
		if v <= trueCpuCount {
			out = append(out, v)
		}
	}
	return out
}

// outputMarkdownTable loads the JSON file and outputs a Markdown table.
func outputMarkdownTable(jsonFile string) {
	sessions, err := report.Load(jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := report.MarkdownTable(os.Stdout, sessions, implementationMeta()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
