package physics

import (
	"math"

	"github.com/san-kum/azisim/internal/dynamo"
)

// DefaultSaturationCoefficient is the κ used when a settings file omits it.
const DefaultSaturationCoefficient = 6.0

// Saturation maps an acoustic amplitude to a multiplicative gain factor in
// (0, 1]. Every variant is non-increasing and tends to zero for large
// amplitudes.
type Saturation interface {
	Name() string
	Respond(amplitude float64) (float64, error)
}

func checkAmplitude(a float64) error {
	if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
		return dynamo.Invalid("amplitude", "must be finite and non-negative, got %v", a)
	}
	return nil
}

func checkCoefficient(k float64) error {
	if k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return dynamo.Invalid("saturation.coefficient", "must be finite and non-negative, got %v", k)
	}
	return nil
}

// Tangent is the saturation 2/(1 + sqrt(1 + (κa)²)) obtained from a tanh
// heat release law.
type Tangent struct {
	Coefficient float64
}

func NewTangent(k float64) (*Tangent, error) {
	if err := checkCoefficient(k); err != nil {
		return nil, err
	}
	return &Tangent{Coefficient: k}, nil
}

func (s *Tangent) Name() string { return "tangent" }

func (s *Tangent) Respond(a float64) (float64, error) {
	if err := checkAmplitude(a); err != nil {
		return 0, err
	}
	ka := s.Coefficient * a
	return 2 / (1 + math.Sqrt(1+ka*ka)), nil
}

// Exponential is the saturation exp(-κa).
type Exponential struct {
	Coefficient float64
}

func NewExponential(k float64) (*Exponential, error) {
	if err := checkCoefficient(k); err != nil {
		return nil, err
	}
	return &Exponential{Coefficient: k}, nil
}

func (s *Exponential) Name() string { return "exponential" }

func (s *Exponential) Respond(a float64) (float64, error) {
	if err := checkAmplitude(a); err != nil {
		return 0, err
	}
	return math.Exp(-s.Coefficient * a), nil
}

// Arctangent is the saturation atan(κa)/(κa), continued by 1 at κa = 0.
type Arctangent struct {
	Coefficient float64
}

func NewArctangent(k float64) (*Arctangent, error) {
	if err := checkCoefficient(k); err != nil {
		return nil, err
	}
	return &Arctangent{Coefficient: k}, nil
}

func (s *Arctangent) Name() string { return "arctangent" }

func (s *Arctangent) Respond(a float64) (float64, error) {
	if err := checkAmplitude(a); err != nil {
		return 0, err
	}
	ka := s.Coefficient * a
	if ka < 1e-8 {
		// atan(u)/u = 1 - u²/3 + O(u⁴)
		return 1 - ka*ka/3, nil
	}
	return math.Atan(ka) / ka, nil
}
