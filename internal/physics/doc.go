// Package physics provides the combustor model driven by the simulator.
//
// The model implements [dynamo.System]:
//
//   - [Annulus]: slow-flow dynamics of an azimuthal mode with N discrete
//     burners or a continuous flame sheet
//   - [Saturation]: amplitude dependent flame gain ([Tangent], [Exponential], [Arctangent])
//   - [Forcing]: periodic acoustic forcing from azimuthally located inputs
//   - [DescribingFunction]: heat release rate mode of the flames
//     ([Conventional], [Simplified])
//
// # Slow Flow
//
// The state is the quaternion envelope of the mode in a frame rotating at
// the eigenfrequency. Forcing at resonance is therefore a constant term:
//
//	f, _ := physics.NewForcing(1, 100, 0, []physics.Input{{Amplitude: 0.05}})
//	sat, _ := physics.NewTangent(6)
//	sys, _ := physics.NewAnnulus(0.1, 1.0, 0, 1, 0, sat, f)
//	sys.HeatRelease, _ = physics.NewSimplified(physics.DefaultGainRatio)
package physics
