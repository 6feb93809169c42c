package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// BenchmarkResult holds results for one test run.
type BenchmarkResult struct {
	Implementation      string  `json:"implementation"`
	Mode                string  `json:"mode,omitempty"`    // "queue" or "pool"
	Payload             string  `json:"payload,omitempty"` // "int" or "bigint"
	NumProducers        int     `json:"num_producers"`
	NumConsumers        int     `json:"num_consumers"`
	NumMessages         int64   `json:"num_messages"`          // produced / accepted count
	NumMessagesConsumed int64   `json:"num_messages_consumed"` // consumed / executed count
	TestDuration        string  `json:"test_duration"`         // e.g. "10s"
	ActualElapsed       string  `json:"actual_elapsed"`        // measured time
	Throughput          float64 `json:"throughput_msgs_sec"`   // based on consumed count
	Timestamp           int64   `json:"timestamp"`
	GoVersion           string  `json:"go_version"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// CPUCount is the GOMAXPROCS value the session ran with.
func (f FullReport) CPUCount() int {
	if f.SystemInfo.SimulatedCPUCount != 0 {
		return f.SystemInfo.SimulatedCPUCount
	}
	return f.SystemInfo.NumCPU
}

// GatherSystemInfo collects basic CPU and memory details.
func GatherSystemInfo() SystemInfo {
	var cpuModel string
	var cpuSpeed float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuSpeed = infos[0].Mhz
	}

	var totalMemory uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMemory = vm.Total
	}

	return SystemInfo{
		NumCPU:      runtime.NumCPU(),
		CPUModel:    cpuModel,
		CPUSpeedMHz: cpuSpeed,
		GOARCH:      runtime.GOARCH,
		TotalMemory: totalMemory,
	}
}

// Load reads every session stored in path.
func Load(path string) ([]FullReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading JSON file %q: %w", path, err)
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshalling JSON: %w", err)
	}
	return sessions, nil
}

// Append adds sessions to the ones already stored in path, creating it if needed.
func Append(path string, sessions []FullReport) error {
	previous, err := Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	updated := append(previous, sessions...)
	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing JSON file: %w", err)
	}
	return nil
}

// Meta describes an implementation for the summary table.
type Meta struct {
	PkgName  string
	Authors  []string
	Features []string
}

// MarkdownTable writes the last session of sessions as a Markdown table,
// fastest implementation first.
func MarkdownTable(w io.Writer, sessions []FullReport, meta map[string]Meta) error {
	if len(sessions) == 0 {
		return errors.New("no sessions found in JSON")
	}
	lastSession := sessions[len(sessions)-1]

	type tableRow struct {
		implementation string
		pkgName        string
		features       string
		author         string
		throughput     float64
	}
	var rows []tableRow
	for _, bench := range lastSession.Benchmarks {
		m := meta[bench.Implementation]
		rows = append(rows, tableRow{
			implementation: bench.Implementation,
			pkgName:        m.PkgName,
			features:       strings.Join(m.Features, ", "),
			author:         strings.Join(m.Authors, ", "),
			throughput:     bench.Throughput,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].throughput > rows[j].throughput
	})

	fmt.Fprintln(w, "## Last Session Benchmark Summary")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Implementation           | Package         | Features                    | Author                      | Throughput (msgs/sec) |")
	fmt.Fprintln(w, "|--------------------------|-----------------|-----------------------------|-----------------------------|-----------------------|")
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "| %-24s | %-15s | %-27s | %-27s | %21.0f |\n",
			r.implementation, r.pkgName, r.features, r.author, r.throughput); err != nil {
			return err
		}
	}
	return nil
}
