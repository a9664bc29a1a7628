package observers

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/azisim/internal/dynamo"
)

func feed(t *testing.T, o Observer, modes []dynamo.Mode) Summary {
	t.Helper()
	for i, m := range modes {
		require.NoError(t, o.Observe(float64(i+1)*0.01, dynamo.FromMode(m)))
	}
	s, err := o.Finalize()
	require.NoError(t, err)
	return s
}

func randomModes(seed uint64, n int, maxAmp float64) []dynamo.Mode {
	rng := rand.New(rand.NewPCG(seed, seed^0xabcdef))
	out := make([]dynamo.Mode, n)
	for i := range out {
		out[i] = dynamo.Mode{
			Amplitude:   rng.Float64() * maxAmp,
			Orientation: (rng.Float64() - 0.5) * math.Pi * 0.99,
			Phase:       (rng.Float64() - 0.5) * 2 * math.Pi * 0.99,
			Nature:      (rng.Float64() - 0.5) * math.Pi / 2 * 0.99,
		}
	}
	return out
}

func field(t *testing.T, s Summary, name string) []float64 {
	t.Helper()
	f, ok := FieldByName(s, name)
	require.True(t, ok, "missing field %q", name)
	return f.Values
}

func TestTimeSeriesRecordsModes(t *testing.T) {
	modes := []dynamo.Mode{
		{Amplitude: 1, Orientation: 0.2, Phase: 0.1, Nature: 0.05},
		{Amplitude: 2, Orientation: -0.4, Phase: 1.0, Nature: -0.1},
	}
	o := NewTimeSeries(len(modes))
	s := feed(t, o, modes)

	assert.Equal(t, KindTimeSeries, s.Kind())
	assert.Len(t, o.Samples(), 2)
	assert.InDeltaSlice(t, []float64{0.01, 0.02}, field(t, s, "time"), 1e-15)
	assert.InDeltaSlice(t, []float64{1, 2}, field(t, s, "amplitude"), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0}, field(t, s, "amplitude_std"), 1e-6)
	assert.InDeltaSlice(t, []float64{0.2, -0.4}, field(t, s, "orientation"), 1e-9)
	assert.InDeltaSlice(t, []float64{0.1, 1.0}, field(t, s, "phase"), 1e-9)
	assert.InDeltaSlice(t, []float64{0.05, -0.1}, field(t, s, "nature"), 1e-9)

	trials, ok := AttrByName(s, "trials")
	assert.True(t, ok)
	assert.Equal(t, 1.0, trials)
}

func TestFinalizeTwiceFails(t *testing.T) {
	h, err := NewHistogram(HistogramConfig{})
	require.NoError(t, err)

	for _, o := range []Observer{NewTimeSeries(0), h} {
		_, err := o.Finalize()
		require.NoError(t, err)
		_, err = o.Finalize()
		assert.ErrorIs(t, err, dynamo.ErrObserverFailure)
		assert.ErrorIs(t, o.Observe(1, dynamo.Identity()), dynamo.ErrObserverFailure)
	}
}

func TestTimeSeriesMergeStatistics(t *testing.T) {
	a := feed(t, NewTimeSeries(1), []dynamo.Mode{{Amplitude: 1, Orientation: 1.5}})
	b := feed(t, NewTimeSeries(1), []dynamo.Mode{{Amplitude: 3, Orientation: -1.5}})

	m, err := a.Merge(b)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, field(t, m, "amplitude")[0], 1e-12)
	assert.InDelta(t, 1.0, field(t, m, "amplitude_std")[0], 1e-9)
	// ±1.5 rad lie close to the ±π/2 identification, so the circular mean
	// is near π/2 and not near 0.
	assert.InDelta(t, math.Pi/2, math.Abs(field(t, m, "orientation")[0]), 1e-9)

	trials, _ := AttrByName(m, "trials")
	assert.Equal(t, 2.0, trials)

	// Operands are left untouched.
	assert.InDelta(t, 1.0, field(t, a, "amplitude")[0], 1e-12)
}

func TestTimeSeriesMergeMismatch(t *testing.T) {
	a := feed(t, NewTimeSeries(1), []dynamo.Mode{{Amplitude: 1}})
	b := feed(t, NewTimeSeries(2), []dynamo.Mode{{Amplitude: 1}, {Amplitude: 2}})
	_, err := a.Merge(b)
	assert.ErrorIs(t, err, dynamo.ErrObserverFailure)

	h, _ := NewHistogram(HistogramConfig{})
	hs := feed(t, h, nil)
	_, err = a.Merge(hs)
	assert.ErrorIs(t, err, dynamo.ErrObserverFailure)
}

func TestHistogramCountsAndPDF(t *testing.T) {
	h, err := NewHistogram(HistogramConfig{Bins: 10, AmplitudeLimit: 1})
	require.NoError(t, err)

	modes := randomModes(1, 5000, 0.99)
	s := feed(t, h, modes)

	for _, name := range []string{"amplitude", "orientation", "phase", "nature"} {
		counts := field(t, s, name+"_counts")
		edges := field(t, s, name+"_edges")
		p := field(t, s, name+"_pdf")
		require.Len(t, edges, len(counts)+1)

		total, integral := 0.0, 0.0
		for i, c := range counts {
			total += c
			integral += p[i] * (edges[i+1] - edges[i])
		}
		assert.Equal(t, 5000.0, total, name)
		assert.InDelta(t, 1.0, integral, 1e-9, name)
	}

	amps := make([]float64, len(modes))
	for i, m := range modes {
		amps[i] = m.Amplitude
	}
	mean, variance := stat.PopMeanVariance(amps, nil)
	mean2, _ := AttrByName(s, "amplitude_mean")
	var2, _ := AttrByName(s, "amplitude_variance")
	assert.InDelta(t, mean, mean2, 1e-9)
	assert.InDelta(t, variance, var2, 1e-9)
}

func TestHistogramGrowsRange(t *testing.T) {
	h, err := NewHistogram(HistogramConfig{Bins: 4, AmplitudeLimit: 1, MaxAmplitudeLimit: 5})
	require.NoError(t, err)

	s := feed(t, h, []dynamo.Mode{{Amplitude: 0.1}, {Amplitude: 2.3}})
	counts := field(t, s, "amplitude_counts")
	assert.Len(t, counts, 12)
	assert.Equal(t, 1.0, counts[0])
	assert.Equal(t, 1.0, counts[9])

	limit, _ := AttrByName(s, "amplitude_limit")
	assert.InDelta(t, 3.0, limit, 1e-12)
}

func TestHistogramExceedsMaxLimit(t *testing.T) {
	h, err := NewHistogram(HistogramConfig{Bins: 4, AmplitudeLimit: 1, MaxAmplitudeLimit: 2})
	require.NoError(t, err)

	assert.NoError(t, h.Observe(0, dynamo.FromMode(dynamo.Mode{Amplitude: 1.5})))
	// Within one limit above the maximum the range still grows.
	assert.NoError(t, h.Observe(0, dynamo.FromMode(dynamo.Mode{Amplitude: 2.5})))
	assert.ErrorIs(t, h.Observe(0, dynamo.FromMode(dynamo.Mode{Amplitude: 3.5})), dynamo.ErrObserverFailure)

	s, err := h.Finalize()
	require.NoError(t, err)
	assert.Len(t, field(t, s, "amplitude_counts"), 12)
}

func halveNature(m dynamo.Mode) dynamo.Mode {
	m.Amplitude *= 2
	m.Nature /= 2
	return m
}

func TestTimeSeriesRecordsHeatRelease(t *testing.T) {
	modes := []dynamo.Mode{{Amplitude: 1, Nature: 0.4}, {Amplitude: 0.5, Nature: -0.2}}

	plain := feed(t, NewTimeSeries(2), modes)
	assert.InDeltaSlice(t, field(t, plain, "amplitude"), field(t, plain, "hrr_amplitude"), 1e-12)
	assert.InDeltaSlice(t, field(t, plain, "nature"), field(t, plain, "hrr_nature"), 1e-12)

	o := NewTimeSeries(2)
	o.HeatRelease = halveNature
	s := feed(t, o, modes)
	assert.InDeltaSlice(t, []float64{2, 1}, field(t, s, "hrr_amplitude"), 1e-12)
	assert.InDeltaSlice(t, []float64{0.2, -0.1}, field(t, s, "hrr_nature"), 1e-9)
}

func TestHistogramBinsHeatReleaseNature(t *testing.T) {
	h, err := NewHistogram(HistogramConfig{Bins: 4, AmplitudeLimit: 1})
	require.NoError(t, err)
	h.HeatRelease = halveNature

	// χ = 0.6 falls in the last nature bin, χ_q = 0.3 in the third.
	s := feed(t, h, []dynamo.Mode{{Amplitude: 0.5, Nature: 0.6}})
	assert.Equal(t, []float64{0, 0, 0, 1}, field(t, s, "nature_counts"))
	assert.Equal(t, []float64{0, 0, 1, 0}, field(t, s, "hrr_nature_counts"))
}

func TestHistogramConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  HistogramConfig
	}{
		{"negative bins", HistogramConfig{Bins: -1}},
		{"negative limit", HistogramConfig{AmplitudeLimit: -1}},
		{"max below limit", HistogramConfig{AmplitudeLimit: 2, MaxAmplitudeLimit: 1}},
		{"nan limit", HistogramConfig{AmplitudeLimit: math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHistogram(tt.cfg)
			assert.ErrorIs(t, err, dynamo.ErrInvalidInput)
		})
	}
}

func TestHistogramMergeIsPermutationIndependent(t *testing.T) {
	var parts []Summary
	for i, maxAmp := range []float64{0.5, 2.5, 1.5, 0.9} {
		h, err := NewHistogram(HistogramConfig{Bins: 8, AmplitudeLimit: 1})
		require.NoError(t, err)
		parts = append(parts, feed(t, h, randomModes(uint64(i+10), 300, maxAmp)))
	}

	fold := func(order []int) Summary {
		acc := parts[order[0]]
		for _, i := range order[1:] {
			var err error
			acc, err = acc.Merge(parts[i])
			require.NoError(t, err)
		}
		return acc
	}

	a := fold([]int{0, 1, 2, 3})
	b := fold([]int{3, 1, 0, 2})

	assert.Equal(t, field(t, a, "amplitude_counts"), field(t, b, "amplitude_counts"))
	assert.Equal(t, field(t, a, "orientation_counts"), field(t, b, "orientation_counts"))
	assert.Equal(t, field(t, a, "nature_counts"), field(t, b, "nature_counts"))

	for _, name := range []string{"samples", "trials", "amplitude_mean", "amplitude_variance", "nature_mean"} {
		va, _ := AttrByName(a, name)
		vb, _ := AttrByName(b, name)
		assert.InDelta(t, va, vb, 1e-12, name)
	}
	samples, _ := AttrByName(a, "samples")
	assert.Equal(t, 1200.0, samples)
}

func TestMomentsMerge(t *testing.T) {
	xs := []float64{1, 4, 2, 8, 5, 7, 1, 3}
	var all, left, right Moments
	for i, x := range xs {
		all.Add(x)
		if i < 3 {
			left.Add(x)
		} else {
			right.Add(x)
		}
	}
	m := left.Merge(right)
	assert.Equal(t, all.N, m.N)
	assert.InDelta(t, all.Mean, m.Mean, 1e-12)
	assert.InDelta(t, all.Variance(), m.Variance(), 1e-12)

	assert.Equal(t, left, left.Merge(Moments{}))
	assert.True(t, math.IsNaN(Moments{}.Variance()))
}
