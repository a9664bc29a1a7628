package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// AmplitudeSpectrum is the one-sided spectrum of a uniformly sampled signal.
type AmplitudeSpectrum struct {
	Frequencies []float64
	Amplitudes  []float64
	// Dominant is the frequency of the largest non-zero bin.
	Dominant float64
}

// Spectrum computes the one-sided amplitude spectrum of the mean-removed
// signal sampled every dt. Frequencies are in cycles per unit time.
func Spectrum(values []float64, dt float64) (*AmplitudeSpectrum, error) {
	n := len(values)
	if n < 2 {
		return nil, fmt.Errorf("spectrum: need at least 2 samples, got %d", n)
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("spectrum: sample interval must be positive and finite, got %g", dt)
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	centered := make([]float64, n)
	for i, v := range values {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	half := n/2 + 1
	s := &AmplitudeSpectrum{
		Frequencies: make([]float64, half),
		Amplitudes:  make([]float64, half),
	}
	best := -1.0
	for k := range half {
		amp := cmplx.Abs(coeffs[k]) / float64(n)
		if k > 0 && !(n%2 == 0 && k == n/2) {
			amp *= 2
		}
		s.Frequencies[k] = float64(k) / (float64(n) * dt)
		s.Amplitudes[k] = amp
		if k > 0 && amp > best {
			best = amp
			s.Dominant = s.Frequencies[k]
		}
	}
	return s, nil
}
