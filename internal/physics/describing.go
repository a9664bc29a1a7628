package physics

import (
	"math"

	"github.com/san-kum/azisim/internal/dynamo"
)

// DefaultGainRatio is the gain ratio r of the simplified azimuthal flame
// describing function used when a settings file omits it.
const DefaultGainRatio = 1.6

// DescribingFunction maps the acoustic mode to the heat release rate (HRR)
// mode that the flames respond with. The HRR mode shares orientation and
// phase with the acoustic mode; amplitude and nature angle may differ.
type DescribingFunction interface {
	Name() string
	Mode(acoustic dynamo.Mode) dynamo.Mode
}

// Conventional is the symmetric flame describing function: the flames
// respond to the local acoustic amplitude alone, so the HRR mode is the
// acoustic mode.
type Conventional struct{}

func NewConventional() *Conventional { return &Conventional{} }

func (c *Conventional) Name() string { return "conventional" }

func (c *Conventional) Mode(acoustic dynamo.Mode) dynamo.Mode { return acoustic }

// Simplified is the azimuthal flame describing function reduced to its
// nature angle dependence. GainRatio r is the ratio of the flame gains for
// the two spinning directions; r = 1 is the conventional flame response.
type Simplified struct {
	GainRatio float64
}

func NewSimplified(r float64) (*Simplified, error) {
	if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, dynamo.Invalid("describing_function.gain_ratio", "must be finite and non-negative, got %v", r)
	}
	return &Simplified{GainRatio: r}, nil
}

func (s *Simplified) Name() string { return "simplified" }

// Mode scales the amplitude by sqrt(1 + (r²-1)/(r²+1)·sin 2χ) and maps the
// nature angle to atan(((r-1)cos χ + (r+1)sin χ) / ((r+1)cos χ + (r-1)sin χ)).
func (s *Simplified) Mode(acoustic dynamo.Mode) dynamo.Mode {
	r := s.GainRatio
	chi := acoustic.Nature
	rsq := r * r
	sc, cc := math.Sincos(chi)

	m := acoustic
	m.Amplitude = acoustic.Amplitude * math.Sqrt(1+(rsq-1)/(rsq+1)*math.Sin(2*chi))
	m.Nature = math.Atan(((r-1)*cc + (r+1)*sc) / ((r+1)*cc + (r-1)*sc))
	return m
}

// heatRelease returns the HRR state for acoustic state q. States too small
// to carry a mode respond conventionally.
func heatRelease(df DescribingFunction, q dynamo.State) dynamo.State {
	if df == nil {
		return q
	}
	if _, ok := df.(*Conventional); ok {
		return q
	}
	if q.Norm() < dynamo.MinAmplitude {
		return q
	}
	return dynamo.FromMode(df.Mode(q.Mode(dynamo.Mode{})))
}
