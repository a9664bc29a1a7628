package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/san-kum/azisim/internal/dynamo"
)

// Simulator integrates one system with one stepper. It holds no per-trial
// state and may be shared by concurrent trials.
type Simulator struct {
	sys     dynamo.System
	stepper dynamo.Stepper
	cfg     Config
	steps   int
}

func New(sys dynamo.System, stepper dynamo.Stepper, cfg Config) (*Simulator, error) {
	if sys == nil || stepper == nil {
		return nil, dynamo.Invalid("simulator", "system and stepper are required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	steps, _ := cfg.Steps()
	return &Simulator{sys: sys, stepper: stepper, cfg: cfg, steps: steps}, nil
}

func (s *Simulator) Config() Config { return s.cfg }

// Steps returns the fixed number of steps of every trial.
func (s *Simulator) Steps() int { return s.steps }

// Run integrates one trial from x0. The initial state is not observed; the
// observer receives the state after every Stride-th step. A diverged state
// or an observer error aborts the trial with a *dynamo.SimulationError and
// the partial result.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, obs dynamo.Observer, seed dynamo.TrialSeed) (Result, error) {
	res := Result{Final: x0}
	if !x0.IsFinite() {
		return res, dynamo.Invalid("initial_mode", "state %v is not finite", x0)
	}

	dt := s.cfg.Dt
	stride := s.cfg.stride()
	limit := s.cfg.limit()
	g := s.sys.Diffusion()
	sqrtDt := math.Sqrt(dt)

	var rng *rand.Rand
	if g != 0 {
		rng = rand.New(rand.NewPCG(seed.Stream, seed.Sequence))
	}

	var clock Clock
	x := x0
	for i := 1; i <= s.steps; i++ {
		if (i-1)&contextPollMask == 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			default:
			}
		}

		var dW dynamo.State
		if rng != nil {
			dW = dynamo.FromComponents(
				rng.NormFloat64()*sqrtDt,
				rng.NormFloat64()*sqrtDt,
				rng.NormFloat64()*sqrtDt,
				rng.NormFloat64()*sqrtDt,
			)
		}

		t := clock.Now()
		next, err := s.stepper.Step(s.sys, x, t, dt, dW)
		if err != nil {
			return res, &dynamo.SimulationError{Step: i, Time: t, State: x, Wrapped: err}
		}
		now := clock.Advance(dt)

		if !next.IsFinite() || next.Norm() > limit {
			return res, &dynamo.SimulationError{Step: i, Time: now, State: next, Wrapped: dynamo.ErrNumericalInstability}
		}

		x = next
		res.Steps = i
		res.Time = now
		res.Final = x

		if obs != nil && i%stride == 0 {
			if err := obs.Observe(now, x); err != nil {
				return res, &dynamo.SimulationError{
					Step:    i,
					Time:    now,
					State:   x,
					Wrapped: fmt.Errorf("%w: %w", dynamo.ErrObserverFailure, err),
				}
			}
			res.Samples++
		}
	}

	return res, nil
}
