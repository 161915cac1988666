// Package render draws report charts with go-chart.
package render

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/cognicore/textscope/pkg/textscope/store"
)

// Supported output formats.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

const (
	defaultHeight  = 500
	minWidth       = 480
	barSlotWidth   = 60
	axisPadding    = 120
	lineStrokeHex  = "1f77b4"
	lineDotWidth   = 4
	lineStrokeSize = 2
)

// ErrEmptySeries is returned when there is nothing to plot.
var ErrEmptySeries = errors.New("render: empty series")

// ChartRenderer renders bar and line charts. The zero value renders PNG.
type ChartRenderer struct {
	Format string
	Height int
}

// NewChartRenderer returns a renderer for format ("png" or "svg").
func NewChartRenderer(format string) (*ChartRenderer, error) {
	switch format {
	case "", FormatPNG:
		return &ChartRenderer{Format: FormatPNG}, nil
	case FormatSVG:
		return &ChartRenderer{Format: FormatSVG}, nil
	default:
		return nil, fmt.Errorf("render: unsupported format %q", format)
	}
}

// Extension is the file extension of rendered charts, without a dot.
func (r *ChartRenderer) Extension() string {
	if r.Format == FormatSVG {
		return FormatSVG
	}
	return FormatPNG
}

func (r *ChartRenderer) provider() chart.RendererProvider {
	if r.Format == FormatSVG {
		return chart.SVG
	}
	return chart.PNG
}

func (r *ChartRenderer) height() int {
	if r.Height > 0 {
		return r.Height
	}
	return defaultHeight
}

// BarChart draws one bar per token in the given order. Each bar is
// labelled with its token and count.
func (r *ChartRenderer) BarChart(w io.Writer, title string, bars []store.TokenCount) error {
	if len(bars) == 0 {
		return ErrEmptySeries
	}

	var max int64
	values := make([]chart.Value, 0, len(bars))
	for _, b := range bars {
		if b.Count > max {
			max = b.Count
		}
		values = append(values, chart.Value{
			Value: float64(b.Count),
			Label: fmt.Sprintf("%s (%d)", b.Token, b.Count),
		})
	}

	bc := chart.BarChart{
		Title:      title,
		Width:      widthFor(len(bars)),
		Height:     r.height(),
		BarWidth:   barSlotWidth - 20,
		BarSpacing: 20,
		XAxis: chart.Style{
			TextRotationDegrees: 45,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(max) + 1},
		},
		Bars: values,
	}
	if err := bc.Render(r.provider(), w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

// LineChart draws token count over token length with a marker per bucket.
func (r *ChartRenderer) LineChart(w io.Writer, title string, buckets []store.LengthBucket) error {
	if len(buckets) == 0 {
		return ErrEmptySeries
	}

	xs := make([]float64, len(buckets))
	ys := make([]float64, len(buckets))
	var maxCount int64
	for i, b := range buckets {
		xs[i] = float64(b.Length)
		ys[i] = float64(b.Count)
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}

	// go-chart rejects zero-width ranges, so pad a single bucket by one on each side.
	minX, maxX := xs[0]-1, xs[len(xs)-1]+1
	if minX < 0 {
		minX = 0
	}

	xAxis := chart.XAxis{
		Name:  "Token length",
		Range: &chart.ContinuousRange{Min: minX, Max: maxX},
	}
	if len(buckets) > 1 {
		ticks := make([]chart.Tick, 0, len(buckets))
		for _, b := range buckets {
			ticks = append(ticks, chart.Tick{Value: float64(b.Length), Label: strconv.Itoa(b.Length)})
		}
		xAxis.Ticks = ticks
	}

	graph := chart.Chart{
		Title:  title,
		Width:  widthFor(len(buckets)),
		Height: r.height(),
		XAxis:  xAxis,
		YAxis: chart.YAxis{
			Name:  "Frequency",
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount) + 1},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "tokens",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex(lineStrokeHex),
					StrokeWidth: lineStrokeSize,
					DotColor:    drawing.ColorFromHex(lineStrokeHex),
					DotWidth:    lineDotWidth,
				},
			},
		},
	}
	if err := graph.Render(r.provider(), w); err != nil {
		return fmt.Errorf("render line chart: %w", err)
	}
	return nil
}

func widthFor(n int) int {
	w := axisPadding + barSlotWidth*n
	if w < minWidth {
		return minWidth
	}
	return w
}
