package physics

import (
	"math"
	"math/cmplx"

	"github.com/san-kum/azisim/internal/dynamo"
)

// Input is one periodic forcing source located at an azimuth of the annulus.
type Input struct {
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
	Phase     float64 `yaml:"phase" json:"phase"`
	Position  float64 `yaml:"position" json:"position"`
}

// Forcing drives the mode with a set of inputs at a common frequency. The
// model works in the slow-flow frame rotating at the eigenfrequency, so an
// input at resonance is a constant term and a detuned input rotates at
// Δ = 2π(Frequency - Eigenfrequency).
type Forcing struct {
	Frequency      float64
	Eigenfrequency float64
	Inputs         []Input

	detuning float64
	cosCoef  complex128
	sinCoef  complex128
}

// NewForcing validates the inputs and precomputes the projection of every
// input onto the cos(nθ) and sin(nθ) envelopes. A zero eigenfrequency means
// the forcing is at resonance.
func NewForcing(order int, frequency, eigenfrequency float64, inputs []Input) (*Forcing, error) {
	if order < 1 {
		return nil, dynamo.Invalid("mode_order", "must be at least 1, got %d", order)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{{"forcing.frequency", frequency}, {"forcing.eigenfrequency", eigenfrequency}} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return nil, dynamo.Invalid(v.name, "must be finite, got %v", v.val)
		}
	}
	if eigenfrequency == 0 {
		eigenfrequency = frequency
	}

	f := &Forcing{
		Frequency:      frequency,
		Eigenfrequency: eigenfrequency,
		Inputs:         append([]Input(nil), inputs...),
		detuning:       2 * math.Pi * (frequency - eigenfrequency),
	}

	n := float64(order)
	for i, in := range inputs {
		if in.Amplitude < 0 || math.IsNaN(in.Amplitude) || math.IsInf(in.Amplitude, 0) {
			return nil, dynamo.Invalid("forcing.inputs", "input %d: amplitude must be finite and non-negative, got %v", i, in.Amplitude)
		}
		if math.IsNaN(in.Phase) || math.IsInf(in.Phase, 0) || math.IsNaN(in.Position) || math.IsInf(in.Position, 0) {
			return nil, dynamo.Invalid("forcing.inputs", "input %d: phase and position must be finite", i)
		}
		src := cmplx.Rect(in.Amplitude, in.Phase)
		sn, cn := math.Sincos(n * in.Position)
		f.cosCoef += complex(cn, 0) * src
		f.sinCoef += complex(sn, 0) * src
	}

	return f, nil
}

// Detuning returns Δ in rad/s.
func (f *Forcing) Detuning() float64 { return f.detuning }

// Zero reports whether the forcing term vanishes identically.
func (f *Forcing) Zero() bool { return f == nil || (f.cosCoef == 0 && f.sinCoef == 0) }

// At returns the forcing quaternion at time t.
func (f *Forcing) At(t float64) dynamo.State {
	if f.Zero() {
		return dynamo.State{}
	}
	rot := cmplx.Rect(1, f.detuning*t)
	c := f.cosCoef * rot
	s := f.sinCoef * rot
	return dynamo.FromComponents(real(c), real(s), imag(c), imag(s))
}
