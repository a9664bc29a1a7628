package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// GrowthRate fits log(a) = c + λt by least squares over the samples with
// t >= from and returns λ. A negative rate means the envelope decays.
func GrowthRate(times, amplitudes []float64, from float64) (float64, error) {
	if len(times) != len(amplitudes) {
		return 0, fmt.Errorf("growth rate: %d times for %d amplitudes", len(times), len(amplitudes))
	}
	var xs, ys []float64
	for i, t := range times {
		a := amplitudes[i]
		if t < from || !(a > 0) || math.IsInf(a, 0) {
			continue
		}
		xs = append(xs, t)
		ys = append(ys, math.Log(a))
	}
	if len(xs) < 2 {
		return 0, fmt.Errorf("growth rate: need at least 2 positive samples after t=%g, got %d", from, len(xs))
	}
	_, rate := stat.LinearRegression(xs, ys, nil, false)
	return rate, nil
}
