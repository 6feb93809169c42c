package main

import (
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/i5heu/GoPoolBench/internal/report"
)

// statsPoints implements XYer and YErrorer, so we can plot lines + error bars.
// x holds the category position of each entry.
type statsPoints struct {
	x     []float64
	stats []report.ConcurrencyStats
}

func (s statsPoints) Len() int                { return len(s.stats) }
func (s statsPoints) XY(i int) (x, y float64) { return s.x[i], s.stats[i].Median }
func (s statsPoints) YError(i int) (low, high float64) {
	return s.stats[i].Median - s.stats[i].Min, s.stats[i].Max - s.stats[i].Median
}

// categoryTicks implements a categorical X-axis: 0,1,2,... => labels for concurrency.
type categoryTicks struct {
	positions []float64
	labels    []string
}

func (ct categoryTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, pos := range ct.positions {
		if pos >= min && pos <= max {
			ticks = append(ticks, plot.Tick{Value: pos, Label: ct.labels[i]})
		}
	}
	return ticks
}

// denseTicks spaces about one labelled tick per 30px of a 9 inch plot on a
// log progression.
func denseTicks(min, max float64) []plot.Tick {
	const nTicks = 648.0 / 30.0
	if min <= 0 {
		min = 1e-9
	}
	start := math.Log10(min)
	step := (math.Log10(max) - start) / nTicks

	var ticks []plot.Tick
	for i := 0.0; i <= nTicks; i++ {
		y := math.Pow(10, start+i*step)
		ticks = append(ticks, plot.Tick{Value: y, Label: report.FormatNs(y)})
	}
	return ticks
}

func main() {
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file containing test sessions")
	outputPrefix := flag.String("out", "benchmark_graph", "Output graph image filename prefix")
	mode := flag.String("mode", "", "Only plot results of this mode (queue or pool); empty plots all")
	flag.Parse()

	sessions, err := report.Load(*jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for cpus, seriesMap := range report.GroupByCPU(sessions, *mode) {
		if len(seriesMap) == 0 {
			continue
		}
		p := newDarkPlot(cpus)

		// Build union of concurrency values for this CPU group.
		concurrencySet := make(map[float64]struct{})
		for _, data := range seriesMap {
			for conc := range data {
				concurrencySet[conc] = struct{}{}
			}
		}
		var concValues []float64
		for val := range concurrencySet {
			concValues = append(concValues, val)
		}
		sort.Float64s(concValues)

		// Map concurrency => category index.
		concMapping := make(map[float64]float64)
		var positions []float64
		var labels []string
		for i, val := range concValues {
			concMapping[val] = float64(i)
			positions = append(positions, float64(i))
			labels = append(labels, strconv.FormatFloat(val, 'f', -1, 64))
		}
		p.X.Tick.Marker = categoryTicks{positions: positions, labels: labels}

		// Sort series alphabetically for consistent legend ordering.
		var names []string
		for name := range seriesMap {
			names = append(names, name)
		}
		sort.Strings(names)

		colors := plotutil.SoftColors
		shapes := []draw.GlyphDrawer{
			draw.CircleGlyph{},
			draw.SquareGlyph{},
			draw.TriangleGlyph{},
			draw.CrossGlyph{},
			draw.PlusGlyph{},
		}

		// Slight offset so each series is visually separated.
		offsetRange := 0.4
		offsetStep := offsetRange / float64(len(names))
		startOffset := -offsetRange/2 + offsetStep/2

		for i, name := range names {
			stats := report.BuildStats(seriesMap[name])
			if len(stats) == 0 {
				continue
			}
			sp := statsPoints{stats: stats, x: make([]float64, len(stats))}
			for j := range stats {
				sp.x[j] = concMapping[stats[j].Concurrency] + startOffset + float64(i)*offsetStep
			}

			line, err := plotter.NewLine(sp)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating line: %v\n", err)
				continue
			}
			line.Color = colors[i%len(colors)]

			points, err := plotter.NewScatter(sp)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating scatter: %v\n", err)
				continue
			}
			points.GlyphStyle.Radius = vg.Points(5)
			points.Color = colors[i%len(colors)]
			points.Shape = shapes[i%len(shapes)]

			yErrBars, err := plotter.NewYErrorBars(sp)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating error bars: %v\n", err)
				continue
			}
			yErrBars.Color = colors[i%len(colors)]

			p.Add(line, points, yErrBars)
			p.Legend.Add(name, line, points)
		}

		filename := fmt.Sprintf("%s_%d.png", *outputPrefix, cpus)
		if err := p.Save(12*vg.Inch, 9*vg.Inch, filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving plot for %d CPU(s): %v\n", cpus, err)
			continue
		}
		fmt.Printf("Graph for %d CPU(s) saved to %s\n", cpus, filename)
	}
}

func newDarkPlot(cpus int) *plot.Plot {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Benchmark (5%%-avg-min / Median / 5%%-avg-max) vs. Concurrency for %d CPU(s)", cpus)
	p.X.Label.Text = "NumProducers + NumConsumers"
	p.Y.Label.Text = "Time per Msg (ns)"
	p.Y.Scale = plot.LinearScale{}

	p.BackgroundColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	p.Title.TextStyle.Color = white
	p.X.Label.TextStyle.Color = white
	p.Y.Label.TextStyle.Color = white
	p.X.Color = white
	p.Y.Color = white
	p.X.Tick.Label.Color = white
	p.Y.Tick.Label.Color = white
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Color = white

	p.Y.Tick.Marker = plot.TickerFunc(denseTicks)
	p.Add(plotter.NewGrid())
	return p
}
