package integrators

import "github.com/san-kum/azisim/internal/dynamo"

// Heun is the stochastic Heun predictor-corrector. The same Wiener increment
// enters predictor and corrector; with additive noise it converges to the
// Itô and Stratonovich solution alike.
type Heun struct{}

func NewHeun() *Heun {
	return &Heun{}
}

func (h *Heun) Name() string { return "heun" }

func (h *Heun) Step(sys dynamo.System, x dynamo.State, t, dt float64, dW dynamo.State) (dynamo.State, error) {
	noise := dW.Scale(sys.Diffusion())

	f0, err := sys.Drift(t, x)
	if err != nil {
		return x, err
	}
	predicted := x.Add(f0.Scale(dt)).Add(noise)
	if !predicted.IsFinite() {
		return predicted, nil
	}

	f1, err := sys.Drift(t+dt, predicted)
	if err != nil {
		return x, err
	}
	return x.Add(f0.Add(f1).Scale(0.5 * dt)).Add(noise), nil
}
