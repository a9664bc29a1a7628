package dynamo

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// MinAmplitude is the norm below which the orientation, phase and nature
// angle of a state are undefined.
const MinAmplitude = 1e-12

// spinningTolerance is the smallest cos(2χ) for which the orientation angle
// of a state is resolvable.
const spinningTolerance = 1e-12

// State is the quaternion order parameter of the azimuthal mode.
type State quat.Number

// Identity returns the unit quaternion 1.
func Identity() State {
	return State{Real: 1}
}

// FromComponents builds a state from its four real components.
func FromComponents(w, x, y, z float64) State {
	return State{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// FromAxisAngle returns the unit quaternion rotating by angle about axis.
func FromAxisAngle(axis [3]float64, angle float64) (State, error) {
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return State{}, Invalid("axis", "must be a finite non-zero vector, got %v", axis)
	}
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return State{}, Invalid("angle", "must be finite, got %v", angle)
	}
	s, c := math.Sincos(angle / 2)
	return State{Real: c, Imag: s * axis[0] / n, Jmag: s * axis[1] / n, Kmag: s * axis[2] / n}, nil
}

// FromMode builds A·e^{iα}·e^{-kχ}·e^{jφ} from the physical mode parameters.
func FromMode(m Mode) State {
	sa, ca := math.Sincos(m.Orientation)
	sc, cc := math.Sincos(m.Nature)
	sp, cp := math.Sincos(m.Phase)

	orientation := quat.Number{Real: ca, Imag: sa}
	nature := quat.Number{Real: cc, Kmag: -sc}
	phase := quat.Number{Real: cp, Jmag: sp}

	return State(quat.Scale(m.Amplitude, quat.Mul(quat.Mul(orientation, nature), phase)))
}

func (s State) num() quat.Number { return quat.Number(s) }

func (s State) Add(other State) State { return State(quat.Add(s.num(), other.num())) }

func (s State) Sub(other State) State { return State(quat.Sub(s.num(), other.num())) }

func (s State) Scale(factor float64) State { return State(quat.Scale(factor, s.num())) }

// Mul returns the Hamilton product s·other.
func (s State) Mul(other State) State { return State(quat.Mul(s.num(), other.num())) }

func (s State) Conj() State { return State(quat.Conj(s.num())) }

// Norm returns the amplitude |q|.
func (s State) Norm() float64 { return quat.Abs(s.num()) }

// Dot returns the Euclidean inner product of the components.
func (s State) Dot(other State) float64 {
	return s.Real*other.Real + s.Imag*other.Imag + s.Jmag*other.Jmag + s.Kmag*other.Kmag
}

// Normalize returns s/|s|. States with a norm below minNorm are returned
// unchanged with ok set to false.
func (s State) Normalize(minNorm float64) (State, bool) {
	n := s.Norm()
	if n < minNorm || n == 0 {
		return s, false
	}
	return s.Scale(1 / n), true
}

func (s State) IsFinite() bool {
	q := s.num()
	return !quat.IsNaN(q) && !quat.IsInf(q)
}

func (s State) Components() [4]float64 {
	return [4]float64{s.Real, s.Imag, s.Jmag, s.Kmag}
}

// Local returns the complex pressure envelope at the azimuth whose argument
// n·θ is nTheta.
func (s State) Local(nTheta float64) complex128 {
	sn, cn := math.Sincos(nTheta)
	return complex(s.Real*cn+s.Imag*sn, s.Jmag*cn+s.Kmag*sn)
}

// Mode decomposes the state into its physical parameters. Angles that are
// undefined for the state (all of them near zero amplitude, the orientation
// of a pure spinning mode) are taken from fallback.
func (s State) Mode(fallback Mode) Mode {
	a := s.Norm()
	m := Mode{
		Amplitude:   a,
		Orientation: fallback.Orientation,
		Phase:       fallback.Phase,
		Nature:      fallback.Nature,
	}
	if a < MinAmplitude || math.IsNaN(a) || math.IsInf(a, 0) {
		return m
	}

	u := s.Scale(1 / a)
	w, x, y, z := u.Real, u.Imag, u.Jmag, u.Kmag

	sin2chi := math.Max(-1, math.Min(1, 2*(x*y-w*z)))
	m.Nature = 0.5 * math.Asin(sin2chi)

	cosPart := w*w - x*x + y*y - z*z
	sinPart := 2 * (y*z + w*x)
	if math.Hypot(cosPart, sinPart) > spinningTolerance {
		m.Orientation = 0.5 * math.Atan2(sinPart, cosPart)
	}

	// e^{kχ}·e^{-iα}·u leaves the temporal phase factor e^{jφ}.
	sc, cc := math.Sincos(m.Nature)
	sa, ca := math.Sincos(m.Orientation)
	r := quat.Mul(quat.Mul(quat.Number{Real: cc, Kmag: sc}, quat.Number{Real: ca, Imag: -sa}), u.num())
	m.Phase = math.Atan2(r.Jmag, r.Real)

	return m
}

// Mode is the physical reading of a state.
type Mode struct {
	Amplitude   float64 `yaml:"amplitude" json:"amplitude"`
	Orientation float64 `yaml:"orientation" json:"orientation"`
	Phase       float64 `yaml:"phase" json:"phase"`
	Nature      float64 `yaml:"nature" json:"nature"`
}

// Valid reports whether the amplitude is non-negative and |χ| ≤ π/4.
func (m Mode) Valid() bool {
	return m.Amplitude >= 0 && math.Abs(m.Nature) <= math.Pi/4 &&
		!math.IsNaN(m.Orientation) && !math.IsNaN(m.Phase) && !math.IsInf(m.Amplitude, 0)
}

// System is the stochastic differential equation dq = f(t, q)dt + g·dW.
type System interface {
	Drift(t float64, x State) (State, error)
	// Diffusion is the additive noise amplitude g applied to each component.
	Diffusion() float64
}

// Stepper advances a state by one fixed step given the Wiener increment dW.
type Stepper interface {
	Name() string
	Step(sys System, x State, t, dt float64, dW State) (State, error)
}

// Observer consumes retained samples of a running trial.
type Observer interface {
	Observe(t float64, x State) error
}
