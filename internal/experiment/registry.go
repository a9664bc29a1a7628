package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/azisim/internal/config"
	"github.com/san-kum/azisim/internal/dynamo"
	"github.com/san-kum/azisim/internal/integrators"
	"github.com/san-kum/azisim/internal/observers"
	"github.com/san-kum/azisim/internal/physics"
)

type (
	SaturationFactory func(coefficient float64) (physics.Saturation, error)
	StepperFactory    func() dynamo.Stepper
	FlameFactory      func(cfg config.FlameConfig) (physics.DescribingFunction, error)
	// ObserverFactory builds a fresh observer for one trial that will see
	// at most samples observations. hrr maps the acoustic mode to the heat
	// release rate mode.
	ObserverFactory func(cfg config.ObserverConfig, samples int, hrr observers.ModeMap) (observers.Observer, error)
)

// Registry resolves the names used in settings files. New variants are
// added here and nowhere else.
type Registry struct {
	saturations map[string]SaturationFactory
	steppers    map[string]StepperFactory
	flames      map[string]FlameFactory
	observers   map[string]ObserverFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		saturations: make(map[string]SaturationFactory),
		steppers:    make(map[string]StepperFactory),
		flames:      make(map[string]FlameFactory),
		observers:   make(map[string]ObserverFactory),
	}

	r.saturations["tangent"] = func(k float64) (physics.Saturation, error) { return physics.NewTangent(k) }
	r.saturations["exponential"] = func(k float64) (physics.Saturation, error) { return physics.NewExponential(k) }
	r.saturations["arctangent"] = func(k float64) (physics.Saturation, error) { return physics.NewArctangent(k) }

	r.steppers["euler-maruyama"] = func() dynamo.Stepper { return integrators.NewEulerMaruyama() }
	r.steppers["heun"] = func() dynamo.Stepper { return integrators.NewHeun() }
	r.steppers["rk4"] = func() dynamo.Stepper { return integrators.NewRK4() }

	r.flames["conventional"] = func(config.FlameConfig) (physics.DescribingFunction, error) { return physics.NewConventional(), nil }
	r.flames["simplified"] = func(cfg config.FlameConfig) (physics.DescribingFunction, error) {
		return physics.NewSimplified(cfg.GainRatio)
	}

	r.observers[observers.KindTimeSeries] = func(_ config.ObserverConfig, samples int, hrr observers.ModeMap) (observers.Observer, error) {
		o := observers.NewTimeSeries(samples)
		o.HeatRelease = hrr
		return o, nil
	}
	r.observers[observers.KindHistogram] = func(cfg config.ObserverConfig, _ int, hrr observers.ModeMap) (observers.Observer, error) {
		o, err := observers.NewHistogram(observers.HistogramConfig{
			Bins:              cfg.Bins,
			AmplitudeLimit:    cfg.AmplitudeLimit,
			MaxAmplitudeLimit: cfg.MaxAmplitudeLimit,
		})
		if err != nil {
			return nil, err
		}
		o.HeatRelease = hrr
		return o, nil
	}

	return r
}

func (r *Registry) RegisterSaturation(name string, fn SaturationFactory) { r.saturations[name] = fn }

func (r *Registry) RegisterStepper(name string, fn StepperFactory) { r.steppers[name] = fn }

func (r *Registry) RegisterFlame(name string, fn FlameFactory) { r.flames[name] = fn }

func (r *Registry) RegisterObserver(name string, fn ObserverFactory) { r.observers[name] = fn }

func (r *Registry) GetSaturation(name string, coefficient float64) (physics.Saturation, error) {
	fn, ok := r.saturations[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown saturation: %s", dynamo.ErrInvalidInput, name)
	}
	return fn(coefficient)
}

func (r *Registry) GetStepper(name string) (dynamo.Stepper, error) {
	fn, ok := r.steppers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integrator: %s", dynamo.ErrInvalidInput, name)
	}
	return fn(), nil
}

func (r *Registry) GetFlame(cfg config.FlameConfig) (physics.DescribingFunction, error) {
	fn, ok := r.flames[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown describing function: %s", dynamo.ErrInvalidInput, cfg.Type)
	}
	return fn(cfg)
}

func (r *Registry) GetObserver(name string) (ObserverFactory, error) {
	fn, ok := r.observers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown observer: %s", dynamo.ErrInvalidInput, name)
	}
	return fn, nil
}

func (r *Registry) ListSaturations() []string { return sortedKeys(r.saturations) }

func (r *Registry) ListSteppers() []string { return sortedKeys(r.steppers) }

func (r *Registry) ListFlames() []string { return sortedKeys(r.flames) }

func (r *Registry) ListObservers() []string { return sortedKeys(r.observers) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
