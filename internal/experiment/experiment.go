package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/azisim/internal/config"
	"github.com/san-kum/azisim/internal/dynamo"
	"github.com/san-kum/azisim/internal/observers"
	"github.com/san-kum/azisim/internal/physics"
	"github.com/san-kum/azisim/internal/sim"
)

// Plan is the validated, immutable form of one settings document. It is
// shared read-only by every trial of the settings.
type Plan struct {
	Settings  *config.Settings
	System    *physics.Annulus
	Flame     physics.DescribingFunction
	Simulator *sim.Simulator
	Initial   dynamo.State
	Samples   int

	newObserver ObserverFactory
}

// Build validates s and resolves every named component.
func (r *Registry) Build(s *config.Settings) (*Plan, error) {
	if s == nil {
		return nil, dynamo.Invalid("settings", "must not be nil")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s = s.Clone()
	p := s.Parameters

	sat, err := r.GetSaturation(s.Saturation.Type, s.Saturation.Coefficient)
	if err != nil {
		return nil, err
	}
	stepper, err := r.GetStepper(s.Integrator)
	if err != nil {
		return nil, err
	}
	flame, err := r.GetFlame(s.Flame)
	if err != nil {
		return nil, err
	}
	newObserver, err := r.GetObserver(s.Observer.Type)
	if err != nil {
		return nil, err
	}

	var forcing *physics.Forcing
	if len(s.Forcing.Inputs) > 0 {
		forcing, err = physics.NewForcing(p.ModeOrder, s.Forcing.Frequency, s.Forcing.Eigenfrequency, s.Forcing.Inputs)
		if err != nil {
			return nil, err
		}
	}

	sys, err := physics.NewAnnulus(p.Damping, p.Gain, p.Noise, p.ModeOrder, p.Burners, sat, forcing)
	if err != nil {
		return nil, err
	}
	sys.HeatRelease = flame

	simulator, err := sim.New(sys, stepper, sim.Config{
		Dt:              p.Timestep,
		Duration:        p.Duration,
		Stride:          s.Observer.Stride,
		DivergenceLimit: p.DivergenceLimit,
	})
	if err != nil {
		return nil, err
	}
	samples, err := simulator.Config().Samples()
	if err != nil {
		return nil, err
	}

	// Reject bad observer parameters before any trial starts.
	if _, err := newObserver(s.Observer, 0, flame.Mode); err != nil {
		return nil, err
	}

	return &Plan{
		Settings:    s,
		System:      sys,
		Flame:       flame,
		Simulator:   simulator,
		Initial:     dynamo.FromMode(p.InitialMode),
		Samples:     samples,
		newObserver: newObserver,
	}, nil
}

// RunTrial runs trial index of the plan. Failures are reported in the
// result and never panic or affect other trials.
func (p *Plan) RunTrial(ctx context.Context, index int) TrialResult {
	seed := dynamo.SplitSeed(p.Settings.Seed, index)
	res := TrialResult{Index: index, Seed: seed}

	obs, err := p.newObserver(p.Settings.Observer, p.Samples, p.Flame.Mode)
	if err != nil {
		res.Err = err
		return res
	}

	out, err := p.Simulator.Run(ctx, p.Initial, obs, seed)
	res.Steps = out.Steps
	if err != nil {
		res.Err = err
		return res
	}

	summary, err := obs.Finalize()
	if err != nil {
		res.Err = fmt.Errorf("trial %d: %w", index, err)
		return res
	}
	res.Summary = summary
	return res
}

// TrialResult is the outcome of one trial.
type TrialResult struct {
	Index   int
	Seed    dynamo.TrialSeed
	Steps   int
	Summary observers.Summary
	Err     error
}
