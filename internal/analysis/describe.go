package analysis

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Description summarizes the finite values of a dataset. NonFinite counts
// the NaN and infinite values that were left out.
type Description struct {
	Count     int
	NonFinite int
	Mean      float64
	Std       float64
	Median    float64
	P5        float64
	P95       float64
	Min       float64
	Max       float64
}

// Describe computes the descriptive statistics of values.
func Describe(values []float64) (Description, error) {
	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			data = append(data, v)
		}
	}
	d := Description{Count: len(data), NonFinite: len(values) - len(data)}
	if len(data) == 0 {
		return d, fmt.Errorf("describe: no finite values in %d samples", len(values))
	}

	var err error
	steps := []struct {
		dst *float64
		fn  func(stats.Float64Data) (float64, error)
	}{
		{&d.Mean, stats.Mean},
		{&d.Std, stats.StandardDeviationPopulation},
		{&d.Median, stats.Median},
		{&d.P5, func(x stats.Float64Data) (float64, error) { return stats.PercentileNearestRank(x, 5) }},
		{&d.P95, func(x stats.Float64Data) (float64, error) { return stats.PercentileNearestRank(x, 95) }},
		{&d.Min, stats.Min},
		{&d.Max, stats.Max},
	}
	for _, s := range steps {
		if *s.dst, err = s.fn(data); err != nil {
			return d, fmt.Errorf("describe: %w", err)
		}
	}
	return d, nil
}
