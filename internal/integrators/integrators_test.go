package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/azisim/internal/dynamo"
)

// decay is dq/dt = -λq with additive noise g.
type decay struct {
	lambda float64
	g      float64
}

func (d *decay) Drift(_ float64, x dynamo.State) (dynamo.State, error) {
	return x.Scale(-d.lambda), nil
}

func (d *decay) Diffusion() float64 { return d.g }

// ramp is dq/dt = t on the real component.
type ramp struct{}

func (ramp) Drift(t float64, _ dynamo.State) (dynamo.State, error) {
	return dynamo.FromComponents(t, 0, 0, 0), nil
}

func (ramp) Diffusion() float64 { return 0 }

var errDrift = errors.New("drift failed")

type failing struct{}

func (failing) Drift(float64, dynamo.State) (dynamo.State, error) { return dynamo.State{}, errDrift }
func (failing) Diffusion() float64                                 { return 1 }

func steppers() []dynamo.Stepper {
	return []dynamo.Stepper{NewEulerMaruyama(), NewHeun(), NewRK4()}
}

func TestDeterministicAccuracy(t *testing.T) {
	tests := []struct {
		stepper dynamo.Stepper
		tol     float64
	}{
		{NewEulerMaruyama(), 1e-2},
		{NewHeun(), 1e-4},
		{NewRK4(), 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.stepper.Name(), func(t *testing.T) {
			sys := &decay{lambda: 1}
			x := dynamo.FromComponents(1, 0.5, -0.5, 0.25)
			x0 := x
			dt := 0.01
			steps := 100
			for i := 0; i < steps; i++ {
				var err error
				x, err = tt.stepper.Step(sys, x, float64(i)*dt, dt, dynamo.State{})
				if err != nil {
					t.Fatal(err)
				}
			}
			want := x0.Scale(math.Exp(-1))
			if d := x.Sub(want).Norm(); d > tt.tol {
				t.Errorf("error %.3g exceeds %.3g", d, tt.tol)
			}
		})
	}
}

func TestAdditiveNoise(t *testing.T) {
	sys := &decay{lambda: 0, g: 0.5}
	dW := dynamo.FromComponents(0.1, -0.2, 0.3, -0.4)
	for _, s := range steppers() {
		x, err := s.Step(sys, dynamo.State{}, 0, 0.01, dW)
		if err != nil {
			t.Fatal(err)
		}
		if want := dW.Scale(0.5); x.Sub(want).Norm() > 1e-15 {
			t.Errorf("%s: got %v, want %v", s.Name(), x, want)
		}
	}
}

func TestHeunUsesEndpointTime(t *testing.T) {
	// ∫_0^h t dt = h²/2, exact for the trapezoidal corrector.
	x, err := NewHeun().Step(ramp{}, dynamo.State{}, 0, 0.2, dynamo.State{})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x.Real-0.02) > 1e-15 {
		t.Errorf("got %v, want 0.02", x.Real)
	}
}

func TestDriftErrorPropagates(t *testing.T) {
	for _, s := range steppers() {
		if _, err := s.Step(failing{}, dynamo.Identity(), 0, 0.1, dynamo.State{}); !errors.Is(err, errDrift) {
			t.Errorf("%s: error = %v, want drift error", s.Name(), err)
		}
	}
}
