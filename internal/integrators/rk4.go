package integrators

import "github.com/san-kum/azisim/internal/dynamo"

// RK4 integrates the drift with the classical fourth order Runge-Kutta
// scheme and adds the noise increment once per step. It is the scheme of
// choice for noise-free runs.
type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) Step(sys dynamo.System, x dynamo.State, t, dt float64, dW dynamo.State) (dynamo.State, error) {
	k1, err := sys.Drift(t, x)
	if err != nil {
		return x, err
	}
	k2, err := sys.Drift(t+dt*0.5, x.Add(k1.Scale(dt*0.5)))
	if err != nil {
		return x, err
	}
	k3, err := sys.Drift(t+dt*0.5, x.Add(k2.Scale(dt*0.5)))
	if err != nil {
		return x, err
	}
	k4, err := sys.Drift(t+dt, x.Add(k3.Scale(dt)))
	if err != nil {
		return x, err
	}

	dt6 := dt / 6.0
	incr := k1.Add(k2.Scale(2)).Add(k3.Scale(2)).Add(k4)
	return x.Add(incr.Scale(dt6)).Add(dW.Scale(sys.Diffusion())), nil
}
