package consensusservice

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartPalette colors the distribution chart.
type ChartPalette struct {
	Background drawing.Color
	Bar        drawing.Color
	WinnerBar  drawing.Color
	Text       drawing.Color
}

// DefaultPalette is dark slate with amber highlights.
var DefaultPalette = ChartPalette{
	Background: drawing.ColorFromHex("1e293b"),
	Bar:        drawing.ColorFromHex("38bdf8"),
	WinnerBar:  drawing.ColorFromHex("f59e0b"),
	Text:       drawing.ColorFromHex("e2e8f0"),
}

const maxBins = 10

// Bin is one bar of the distribution.
type Bin struct {
	Lo, Hi int
	Count  int
	// Winning marks the bin holding a winning number.
	Winning bool
}

// Label prints the bin bounds.
func (b Bin) Label() string {
	if b.Lo == b.Hi {
		return strconv.Itoa(b.Lo)
	}
	return fmt.Sprintf("%d-%d", b.Lo, b.Hi)
}

// Histogram buckets the verified numbers of exp over [lo, hi].
func Histogram(exp Export, lo, hi int) []Bin {
	if hi < lo {
		lo, hi = hi, lo
	}
	width := max(1, (hi-lo+maxBins-1)/maxBins)
	bins := make([]Bin, 0, maxBins)
	for start := lo; start <= hi; start += width {
		end := min(start+width-1, hi)
		bins = append(bins, Bin{Lo: start, Hi: end})
	}

	index := func(n int) int {
		if n < lo || n > hi {
			return -1
		}
		return (n - lo) / width
	}
	for _, r := range exp.Reveals {
		n, err := strconv.Atoi(r.Number)
		if err != nil {
			continue
		}
		if i := index(n); i >= 0 {
			bins[i].Count++
		}
	}
	for _, w := range exp.Summary.Winners {
		if i := index(w.Number); i >= 0 {
			bins[i].Winning = true
		}
	}
	return bins
}

// DistributionChart renders a PNG bar chart of the verified numbers. Bins
// holding a winner are highlighted.
func DistributionChart(exp Export, lo, hi int, palette ChartPalette) ([]byte, error) {
	if !exp.Summary.HasWinners() {
		return renderNoDataPlaceholder(palette)
	}

	bins := Histogram(exp, lo, hi)
	bars := make([]chart.Value, 0, len(bins))
	peak := 0
	for _, b := range bins {
		color := palette.Bar
		if b.Winning {
			color = palette.WinnerBar
		}
		bars = append(bars, chart.Value{
			Label: b.Label(),
			Value: float64(b.Count),
			Style: chart.Style{
				FillColor:   color,
				StrokeColor: color,
			},
		})
		peak = max(peak, b.Count)
	}

	graph := chart.BarChart{
		Title:  fmt.Sprintf("Target %.2f (average %.2f, n=%d)", *exp.Summary.Target, *exp.Summary.Average, exp.Summary.Participants),
		Width:  800,
		Height: 400,
		TitleStyle: chart.Style{
			FontColor: palette.Text,
		},
		Background: chart.Style{
			FillColor: palette.Background,
			Padding:   chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		Canvas: chart.Style{
			FillColor: palette.Background,
		},
		XAxis: chart.Style{
			FontColor: palette.Text,
		},
		YAxis: chart.YAxis{
			Style: chart.Style{
				FontColor: palette.Text,
			},
			Range: &chart.ContinuousRange{Min: 0, Max: float64(peak + 1)},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return strconv.Itoa(int(f))
				}
				return ""
			},
		},
		BarWidth:   40,
		BarSpacing: 20,
		Bars:       bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render distribution chart: %w", err)
	}
	return buffer.Bytes(), nil
}

func renderNoDataPlaceholder(palette ChartPalette) ([]byte, error) {
	const (
		width  = 400
		height = 200
		msg    = "No valid participants"
	)

	// BarChart refuses to render without a bar or with an empty range.
	graph := chart.BarChart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			FillColor: palette.Background,
		},
		Canvas: chart.Style{
			FillColor: palette.Background,
		},
		XAxis: chart.Style{Hidden: true},
		YAxis: chart.YAxis{
			Style: chart.Style{Hidden: true},
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Bars: []chart.Value{{Value: 0, Style: chart.Style{FillColor: palette.Background, StrokeColor: palette.Background}}},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, chartDefaults chart.Style) {
				r.SetFontColor(palette.Text)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				x := (cb.Width() - tb.Width()) / 2
				y := (cb.Height() + tb.Height()) / 2
				r.Text(msg, x, y)
			},
		},
	}
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
