package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"sort"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/pfx"
	"github.com/reefgenomics/symbiomisc/community"
	"github.com/reefgenomics/symbiomisc/ordination"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// FigureSize is a physical figure size. Pixel dimensions are derived from it.
type FigureSize struct {
	WidthInches  float64 `json:"width_inches"`
	HeightInches float64 `json:"height_inches"`
	DPI          float64 `json:"dpi"`
}

func DefaultFigureSize() FigureSize {
	return FigureSize{WidthInches: 7, HeightInches: 5, DPI: 300}
}

func (f FigureSize) Pixels() (int, int) {
	return int(math.Round(f.WidthInches * f.DPI)), int(math.Round(f.HeightInches * f.DPI))
}

func toDrawing(c color.RGBA) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

// Plottable reports why e cannot be drawn as a scatter plot: fewer than two
// axes, no points, or an axis on which every point has the same coordinate,
// as happens when all samples have the same composition.
func Plottable(e ordination.Embedding) error {
	if e.Coords == nil {
		return fmt.Errorf("ordination has no coordinates")
	}
	r, c := e.Coords.Dims()
	if r == 0 || c < 2 {
		return fmt.Errorf("ordination needs two axes and at least one point to plot, has %d x %d", r, c)
	}

	for axis := 0; axis < 2; axis++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < r; i++ {
			v := e.Coords.At(i, axis)
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		if !(hi-lo > 0) {
			return fmt.Errorf("ordination axis %d has no spread (all points at %v)", axis+1, lo)
		}
	}

	return nil
}

// PlotOrdination renders the first two axes of e as a PNG scatter plot with
// one series per group. groupOf maps a sample to its group (host species,
// year, dominant genus); samples without a group are drawn as "other".
func PlotOrdination(w io.Writer, title string, e ordination.Embedding, groupOf func(sample string) string, palette map[string]color.RGBA, size FigureSize) error {
	if err := Plottable(e); err != nil {
		return err
	}

	xs := make(map[string][]float64)
	ys := make(map[string][]float64)
	for i, label := range e.Labels {
		g := groupOf(label)
		if g == "" {
			g = "other"
		}
		xs[g] = append(xs[g], e.Coords.At(i, 0))
		ys[g] = append(ys[g], e.Coords.At(i, 1))
	}

	groups := make([]string, 0, len(xs))
	for g := range xs {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	width, height := size.Pixels()
	graph := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		DPI:    size.DPI,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{Name: "NMDS1"},
		YAxis: chart.YAxis{Name: "NMDS2"},
	}

	for _, g := range groups {
		style := chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    4,
		}
		if c, ok := palette[g]; ok {
			style.DotColor = toDrawing(c)
		}

		graph.Series = append(graph.Series, chart.ContinuousSeries{
			Name:    g,
			Style:   style,
			XValues: xs[g],
			YValues: ys[g],
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// ReadCountHistogram prints a text histogram of per-sample read counts.
func ReadCountHistogram(w io.Writer, meta community.Metadata, bins int) error {
	counts := make([]float64, 0, meta.Len())
	for _, s := range meta.Samples() {
		counts = append(counts, s.ReadCount)
	}
	if len(counts) == 0 {
		_, err := fmt.Fprintln(w, "no samples")
		return err
	}

	hist := histogram.Hist(bins, counts)
	if err := histogram.Fprint(w, hist, histogram.Linear(40)); err != nil {
		return pfx.Err(err)
	}

	return nil
}
