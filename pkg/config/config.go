// Package config holds the benchmark driver configuration. It can be
// imported by other programs without pulling in the harness itself.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Concurrency is one producer/consumer setting. In pool mode consumers are
// the pool workers.
type Concurrency struct {
	NumProducers int `yaml:"producers" json:"producers"`
	NumConsumers int `yaml:"consumers" json:"consumers"`
}

// Bench is the full benchmark configuration.
type Bench struct {
	Iterations      int           `yaml:"iterations" json:"iterations"`
	CPU             int           `yaml:"cpu" json:"cpu"`
	Duration        time.Duration `yaml:"-" json:"-"`
	DurationText    string        `yaml:"duration" json:"duration"`
	QueueCapacity   uint64        `yaml:"queue_capacity" json:"queue_capacity"`
	Mode            string        `yaml:"mode" json:"mode"`
	Payload         string        `yaml:"payload" json:"payload"`
	Modulus         string        `yaml:"modulus" json:"modulus"` // decimal; empty uses the payload default
	HighConcurrency bool          `yaml:"high_concurrency" json:"high_concurrency"`
	Concurrency     []Concurrency `yaml:"concurrency" json:"concurrency"`
	ResultsFile     string        `yaml:"results_file" json:"results_file"`
}

// Benchmark modes.
const (
	ModeQueue = "queue"
	ModePool  = "pool"
	ModeAll   = "all"
)

// Default returns the configuration the driver uses without a file.
func Default() Bench {
	return Bench{
		Iterations:    5,
		Duration:      5 * time.Second,
		QueueCapacity: 1024,
		Mode:          ModeAll,
		Payload:       "int",
		Concurrency: []Concurrency{
			{NumProducers: 2, NumConsumers: 2},
			{NumProducers: 10, NumConsumers: 10},
			{NumProducers: 50, NumConsumers: 50},
		},
		ResultsFile: "test-results.json",
	}
}

// HighConcurrency are the extra settings enabled by -high-concurrency.
func HighConcurrency() []Concurrency {
	return []Concurrency{
		{NumProducers: 100, NumConsumers: 100},
		{NumProducers: 250, NumConsumers: 250},
		{NumProducers: 500, NumConsumers: 500},
	}
}

// LoadFile reads a YAML or JSON file on top of Default.
func LoadFile(path string) (Bench, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", ext)
	}

	if cfg.DurationText != "" {
		d, err := time.ParseDuration(cfg.DurationText)
		if err != nil {
			return cfg, fmt.Errorf("invalid duration: %w", err)
		}
		cfg.Duration = d
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the driver cannot run with.
func (b Bench) Validate() error {
	if b.Iterations <= 0 {
		return fmt.Errorf("iterations must be > 0, got %d", b.Iterations)
	}
	if b.Duration <= 0 {
		return fmt.Errorf("duration must be > 0, got %s", b.Duration)
	}
	if b.QueueCapacity == 0 {
		return fmt.Errorf("queue_capacity must be > 0")
	}
	switch b.Mode {
	case ModeQueue, ModePool, ModeAll:
	default:
		return fmt.Errorf("unknown mode %q", b.Mode)
	}
	if len(b.Concurrency) == 0 {
		return fmt.Errorf("at least one concurrency setting is required")
	}
	for i, c := range b.Concurrency {
		if c.NumProducers <= 0 || c.NumConsumers <= 0 {
			return fmt.Errorf("concurrency[%d]: producers and consumers must be > 0", i)
		}
	}
	return nil
}

// RunsQueues reports whether the queue implementations are benchmarked.
func (b Bench) RunsQueues() bool { return b.Mode == ModeQueue || b.Mode == ModeAll }

// RunsPool reports whether the thread pool is benchmarked.
func (b Bench) RunsPool() bool { return b.Mode == ModePool || b.Mode == ModeAll }
