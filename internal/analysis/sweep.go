package analysis

import (
	"cmp"
	"fmt"
	"slices"
)

// SweepPoint is the statistics of one dataset at one parameter value.
type SweepPoint struct {
	Label     string
	Parameter float64
	Stats     Description
}

// Sweep describes series[i], taken at params[i], skipping the leading
// discard fraction of each series as transient. Points are returned in
// ascending parameter order.
func Sweep(labels []string, params []float64, series [][]float64, discard float64) ([]SweepPoint, error) {
	if len(labels) != len(params) || len(params) != len(series) {
		return nil, fmt.Errorf("sweep: %d labels, %d parameters, %d series", len(labels), len(params), len(series))
	}
	if discard < 0 || discard >= 1 {
		return nil, fmt.Errorf("sweep: discard fraction must be in [0, 1), got %g", discard)
	}

	points := make([]SweepPoint, 0, len(params))
	for i, values := range series {
		skip := int(discard * float64(len(values)))
		d, err := Describe(values[skip:])
		if err != nil {
			return nil, fmt.Errorf("sweep %s: %w", labels[i], err)
		}
		points = append(points, SweepPoint{Label: labels[i], Parameter: params[i], Stats: d})
	}
	slices.SortStableFunc(points, func(a, b SweepPoint) int { return cmp.Compare(a.Parameter, b.Parameter) })
	return points, nil
}
