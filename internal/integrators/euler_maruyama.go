package integrators

import "github.com/san-kum/azisim/internal/dynamo"

// EulerMaruyama is the explicit scheme x + f(t, x)dt + g·dW.
type EulerMaruyama struct{}

func NewEulerMaruyama() *EulerMaruyama {
	return &EulerMaruyama{}
}

func (e *EulerMaruyama) Name() string { return "euler-maruyama" }

func (e *EulerMaruyama) Step(sys dynamo.System, x dynamo.State, t, dt float64, dW dynamo.State) (dynamo.State, error) {
	f, err := sys.Drift(t, x)
	if err != nil {
		return x, err
	}
	return x.Add(f.Scale(dt)).Add(dW.Scale(sys.Diffusion())), nil
}
