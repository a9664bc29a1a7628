// Package analysis characterizes archived datasets.
//
//   - [Describe]: descriptive statistics of one dataset
//   - [Spectrum]: one-sided amplitude spectrum and dominant frequency
//   - [GrowthRate]: exponential growth or decay rate of an amplitude envelope
//   - [Sweep]: statistics of one dataset across a parameter sweep
//
// # Limit Cycles
//
// A negative growth rate of the mean amplitude means the oscillation decays;
// a rate near zero after the transient indicates a saturated limit cycle:
//
//	rate, err := analysis.GrowthRate(times, amplitude, 0.5)
package analysis
