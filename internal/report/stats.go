package report

import (
	"fmt"
	"sort"
	"time"
)

// Series names one plotted line: an implementation under one payload.
func (b BenchmarkResult) Series() string {
	if b.Payload == "" || b.Payload == "int" {
		return b.Implementation
	}
	return fmt.Sprintf("%s [%s]", b.Implementation, b.Payload)
}

// NsPerMessage is the measured time per consumed message. ok is false when
// the result cannot be used, e.g. nothing was consumed.
func (b BenchmarkResult) NsPerMessage() (ns float64, ok bool) {
	dur, err := time.ParseDuration(b.ActualElapsed)
	if err != nil || b.NumMessagesConsumed == 0 {
		return 0, false
	}
	return float64(dur.Nanoseconds()) / float64(b.NumMessagesConsumed), true
}

// Samples is CPU count -> series -> total goroutines -> ns/msg values.
type Samples map[int]map[string]map[float64][]float64

// GroupByCPU collects ns/msg samples from every session. A non-empty mode
// keeps only results of that mode.
func GroupByCPU(sessions []FullReport, mode string) Samples {
	out := make(Samples)
	for _, session := range sessions {
		cpus := session.CPUCount()
		if _, ok := out[cpus]; !ok {
			out[cpus] = make(map[string]map[float64][]float64)
		}
		for _, b := range session.Benchmarks {
			if mode != "" && b.Mode != "" && b.Mode != mode {
				continue
			}
			ns, ok := b.NsPerMessage()
			if !ok {
				continue
			}
			x := float64(b.NumProducers + b.NumConsumers)
			series := out[cpus]
			if _, ok := series[b.Series()]; !ok {
				series[b.Series()] = make(map[float64][]float64)
			}
			series[b.Series()][x] = append(series[b.Series()][x], ns)
		}
	}
	return out
}

// ConcurrencyStats holds "5%-avg-min", median, and "5%-avg-max" for one concurrency level.
type ConcurrencyStats struct {
	Concurrency float64
	Min         float64 // average of bottom 5%
	Median      float64
	Max         float64 // average of top 5%
}

// BuildStats computes the spread per concurrency level, ordered by level.
// The sample slices are sorted in place.
func BuildStats(concurrencyMap map[float64][]float64) []ConcurrencyStats {
	var out []ConcurrencyStats
	for x, vals := range concurrencyMap {
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		out = append(out, ConcurrencyStats{
			Concurrency: x,
			Min:         AverageOfRange(vals, 0.0, 0.05),
			Median:      Median(vals),
			Max:         AverageOfRange(vals, 0.95, 1.0),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Concurrency < out[j].Concurrency })
	return out
}

// AverageOfRange returns the average of sortedVals in [startFrac, endFrac] of its length.
// E.g. AverageOfRange(vals, 0, 0.05) is the average of the bottom 5%.
func AverageOfRange(sortedVals []float64, startFrac, endFrac float64) float64 {
	n := len(sortedVals)
	if n == 0 {
		return 0
	}
	startIndex := max(int(float64(n)*startFrac), 0)
	endIndex := min(int(float64(n)*endFrac), n)
	if startIndex >= endIndex {
		// fallback to median if 5% slice is too small
		return Median(sortedVals)
	}
	sum := 0.0
	for i := startIndex; i < endIndex; i++ {
		sum += sortedVals[i]
	}
	return sum / float64(endIndex-startIndex)
}

// Median of an already sorted, non-empty slice.
func Median(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

// FormatNs nicely formats a nanoseconds value in ns, µs, ms, or s.
func FormatNs(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.0fns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.1fµs", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.1fms", ns/1e6)
	default:
		return fmt.Sprintf("%.2fs", ns/1e9)
	}
}
