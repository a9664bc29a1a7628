package physics

import (
	"math"

	"github.com/san-kum/azisim/internal/dynamo"
)

// Annulus implements the slow-flow dynamics of an azimuthal mode of order n
// in an annular combustor.
// State: q with cos(nθ) envelope w + iy and sin(nθ) envelope x + iz.
// The flames respond to the heat release rate mode h = D(q) of the
// describing function D. Equations, with p_b = η_c cos nθ_b + η_s sin nθ_b
// the local value of h:
//
//	dζ_c/dt = -αζ_c + (2/N) Σ_b β S(|p_b|) cos(nθ_b) p_b + f_c(t)
//	dζ_s/dt = -αζ_s + (2/N) Σ_b β S(|p_b|) sin(nθ_b) p_b + f_s(t)
//
// With no discrete burners the flame is a continuous sheet and the drift
// reduces to βS(|h|)h - αq + F(t). The conventional describing function
// has h = q.
type Annulus struct {
	Damping    float64
	Gain       float64
	ModeOrder  int
	Burners    int
	Noise      float64
	Saturation Saturation
	Forcing    *Forcing

	// HeatRelease is the describing function; nil is the conventional one.
	HeatRelease DescribingFunction

	burnerCos []float64
	burnerSin []float64
}

// NewAnnulus validates the parameters and precomputes the burner geometry.
// forcing may be nil.
func NewAnnulus(damping, gain, noise float64, order, burners int, sat Saturation, forcing *Forcing) (*Annulus, error) {
	if math.IsNaN(damping) || math.IsInf(damping, 0) {
		return nil, dynamo.Invalid("damping", "must be finite, got %v", damping)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{{"gain", gain}, {"noise", noise}} {
		if v.val < 0 || math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return nil, dynamo.Invalid(v.name, "must be finite and non-negative, got %v", v.val)
		}
	}
	if order < 1 {
		return nil, dynamo.Invalid("mode_order", "must be at least 1, got %d", order)
	}
	if burners < 0 || (burners > 0 && burners <= 2*order) {
		return nil, dynamo.Invalid("burners", "must be 0 or greater than 2n = %d, got %d", 2*order, burners)
	}
	if sat == nil {
		return nil, dynamo.Invalid("saturation", "must be set")
	}

	a := &Annulus{
		Damping:    damping,
		Gain:       gain,
		ModeOrder:  order,
		Burners:    burners,
		Noise:      noise,
		Saturation: sat,
		Forcing:    forcing,
		burnerCos:  make([]float64, burners),
		burnerSin:  make([]float64, burners),
	}
	for b := 0; b < burners; b++ {
		theta := 2 * math.Pi * float64(b) / float64(burners)
		a.burnerSin[b], a.burnerCos[b] = math.Sincos(float64(order) * theta)
	}
	return a, nil
}

func (a *Annulus) Drift(t float64, q dynamo.State) (dynamo.State, error) {
	h := heatRelease(a.HeatRelease, q)
	var d dynamo.State
	if a.Burners == 0 {
		s, err := a.Saturation.Respond(h.Norm())
		if err != nil {
			return dynamo.State{}, err
		}
		d = h.Scale(a.Gain * s).Sub(q.Scale(a.Damping))
	} else {
		var dw, dx, dy, dz float64
		for b := range a.burnerCos {
			c, s := a.burnerCos[b], a.burnerSin[b]
			pr := h.Real*c + h.Imag*s
			pi := h.Jmag*c + h.Kmag*s
			sat, err := a.Saturation.Respond(math.Hypot(pr, pi))
			if err != nil {
				return dynamo.State{}, err
			}
			g := a.Gain * sat
			dw += g * c * pr
			dx += g * s * pr
			dy += g * c * pi
			dz += g * s * pi
		}
		w := 2 / float64(a.Burners)
		d = dynamo.FromComponents(w*dw, w*dx, w*dy, w*dz).Sub(q.Scale(a.Damping))
	}
	if !a.Forcing.Zero() {
		d = d.Add(a.Forcing.At(t))
	}
	return d, nil
}

// Diffusion returns the per-component noise intensity σ/√2, so that the
// complex envelopes receive white noise of intensity σ.
func (a *Annulus) Diffusion() float64 { return a.Noise / math.Sqrt2 }

// GetParams returns the scalar model parameters.
func (a *Annulus) GetParams() map[string]float64 {
	return map[string]float64{
		"damping":    a.Damping,
		"gain":       a.Gain,
		"noise":      a.Noise,
		"mode_order": float64(a.ModeOrder),
		"burners":    float64(a.Burners),
	}
}
