package viz

import (
	"math"

	"github.com/guptarohit/asciigraph"
)

const (
	DefaultPlotHeight = 12
	DefaultPlotWidth  = 80
)

// Plot draws values as an ASCII line chart. Infinite values are left as
// gaps.
func Plot(values []float64, caption string, height, width int) string {
	if height <= 0 {
		height = DefaultPlotHeight
	}
	if width <= 0 {
		width = DefaultPlotWidth
	}

	data := make([]float64, len(values))
	finite := 0
	for i, v := range values {
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		if !math.IsNaN(v) {
			finite++
		}
		data[i] = v
	}
	if finite == 0 {
		return Subtle.Render(caption + ": no finite values")
	}
	if len(data) == 1 {
		data = append(data, data[0])
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

func finiteRange(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}
