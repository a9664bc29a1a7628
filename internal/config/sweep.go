package config

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/azisim/internal/dynamo"
)

// sweepSetters are the parameters a sweep can vary. gain_factor sets the
// gain as a multiple of the damping.
var sweepSetters = map[string]func(*Settings, float64){
	"gain":                   func(s *Settings, v float64) { s.Parameters.Gain = v },
	"gain_factor":            func(s *Settings, v float64) { s.Parameters.Gain = v * s.Parameters.Damping },
	"damping":                func(s *Settings, v float64) { s.Parameters.Damping = v },
	"noise":                  func(s *Settings, v float64) { s.Parameters.Noise = v },
	"saturation_coefficient": func(s *Settings, v float64) { s.Saturation.Coefficient = v },
	"forcing_frequency":      func(s *Settings, v float64) { s.Forcing.Frequency = v },
	"gain_ratio":             func(s *Settings, v float64) { s.Flame.GainRatio = v },
}

// SweepParameters lists the parameters accepted by Expand.
func SweepParameters() []string {
	names := make([]string, 0, len(sweepSetters))
	for name := range sweepSetters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Sweep is an evenly spaced parameter range.
type Sweep struct {
	Parameter string
	Min, Max  float64
	Steps     int
}

// Values returns the Steps points from Min to Max inclusive.
func (sw Sweep) Values() ([]float64, error) {
	switch {
	case sw.Steps < 1:
		return nil, dynamo.Invalid("sweep.steps", "must be at least 1, got %d", sw.Steps)
	case math.IsNaN(sw.Min) || math.IsInf(sw.Min, 0) || math.IsNaN(sw.Max) || math.IsInf(sw.Max, 0):
		return nil, dynamo.Invalid("sweep.range", "must be finite, got [%g, %g]", sw.Min, sw.Max)
	case sw.Steps == 1:
		return []float64{sw.Min}, nil
	}
	return floats.Span(make([]float64, sw.Steps), sw.Min, sw.Max), nil
}

// Expand derives one settings document per value of parameter from base.
// Each document is named and grouped <base>_<parameter>_<value>, or
// <parameter>_<value> when base has no name, and is validated.
func Expand(base *Settings, parameter string, values []float64) ([]*Settings, error) {
	set, ok := sweepSetters[parameter]
	if !ok {
		return nil, dynamo.Invalid("sweep.parameter", "unknown parameter %q (available: %v)", parameter, SweepParameters())
	}
	if len(values) == 0 {
		return nil, dynamo.Invalid("sweep.values", "must not be empty")
	}

	out := make([]*Settings, 0, len(values))
	for _, v := range values {
		s := base.Clone()
		set(s, v)
		s.Name = fmt.Sprintf("%s_%g", parameter, v)
		if base.Name != "" {
			s.Name = base.Name + "_" + s.Name
		}
		s.Output.Group = s.Name
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}
