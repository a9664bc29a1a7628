package sim

import (
	"math"

	"github.com/san-kum/azisim/internal/dynamo"
)

// DefaultDivergenceLimit is the amplitude above which a trial is declared
// numerically unstable.
const DefaultDivergenceLimit = 1e12

// contextPollMask sets how often a running trial checks for cancellation
// (every 1024 steps).
const contextPollMask = 1<<10 - 1

// stepSnapTolerance is the relative distance of duration/dt from an integer
// below which the ratio is treated as that integer.
const stepSnapTolerance = 1e-9

type Config struct {
	Dt              float64
	Duration        float64
	Stride          int
	DivergenceLimit float64
}

// Steps returns the number of integration steps of a trial.
func (c Config) Steps() (int, error) {
	return StepCount(c.Duration, c.Dt)
}

// Samples returns the number of observer calls of a trial.
func (c Config) Samples() (int, error) {
	n, err := c.Steps()
	if err != nil {
		return 0, err
	}
	return n / c.stride(), nil
}

func (c Config) stride() int {
	if c.Stride < 1 {
		return 1
	}
	return c.Stride
}

func (c Config) limit() float64 {
	if c.DivergenceLimit <= 0 {
		return DefaultDivergenceLimit
	}
	return c.DivergenceLimit
}

func (c Config) validate() error {
	if _, err := c.Steps(); err != nil {
		return err
	}
	if c.Stride < 0 {
		return dynamo.Invalid("stride", "must be positive, got %d", c.Stride)
	}
	if math.IsNaN(c.DivergenceLimit) {
		return dynamo.Invalid("divergence_limit", "must not be NaN")
	}
	return nil
}

// StepCount returns floor(duration/dt). A ratio within a relative 1e-9 of an
// integer is snapped to it first, so duration=10, dt=0.001 yields 10000
// steps and not 9999.
func StepCount(duration, dt float64) (int, error) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return 0, dynamo.Invalid("timestep", "must be finite and positive, got %v", dt)
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, dynamo.Invalid("duration", "must be finite and positive, got %v", duration)
	}
	ratio := duration / dt
	if ratio >= math.MaxInt64 {
		return 0, dynamo.Invalid("duration", "%v steps exceed the supported range", ratio)
	}
	n := math.Round(ratio)
	if math.Abs(ratio-n) > stepSnapTolerance*math.Max(1, ratio) {
		n = math.Floor(ratio)
	}
	if n < 1 {
		return 0, dynamo.Invalid("duration", "%v is shorter than one time step %v", duration, dt)
	}
	return int(n), nil
}

// Clock accumulates time with Neumaier compensated summation so that the
// time after many steps stays within one ulp of the exact sum.
type Clock struct {
	sum  float64
	comp float64
}

// Advance adds dt and returns the new time.
func (c *Clock) Advance(dt float64) float64 {
	t := c.sum + dt
	if math.Abs(c.sum) >= math.Abs(dt) {
		c.comp += (c.sum - t) + dt
	} else {
		c.comp += (dt - t) + c.sum
	}
	c.sum = t
	return c.Now()
}

func (c *Clock) Now() float64 { return c.sum + c.comp }

// Result describes a completed or aborted trial.
type Result struct {
	Steps   int
	Samples int
	Time    float64
	Final   dynamo.State
}
