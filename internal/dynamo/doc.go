// Package dynamo provides the core primitives of the azimuthal mode simulator.
//
// The package defines the quaternion state space and the contracts shared by
// the rest of the simulator:
//
//   - [State]: quaternion order parameter (w, x, y, z) of the azimuthal mode
//   - [Mode]: the physical reading of a state (amplitude, orientation, phase, nature angle)
//   - [System]: drift and diffusion of the stochastic differential equation
//   - [Stepper]: fixed-step stochastic integrator
//   - [Observer]: per-trial statistics collector
//
// # State Space
//
// A state is written q = A·e^{iα}·e^{-kχ}·e^{jφ} with amplitude A, orientation
// α = n·θ0, nature angle χ and temporal phase φ. The complex envelope of the
// cos(nθ) standing component is w + i·y and the sin(nθ) component is x + i·z:
//
//	q := dynamo.FromMode(dynamo.Mode{Amplitude: 1, Nature: math.Pi / 8})
//	m := q.Mode(dynamo.Mode{})
//
// # Thread Safety
//
// States are values and every operation on them is pure. A trial owns its
// state exclusively; systems and steppers are shared read-only across workers.
package dynamo
