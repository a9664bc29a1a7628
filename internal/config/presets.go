package config

import (
	"sort"

	"github.com/san-kum/azisim/internal/physics"
)

// ExperimentGainFactors are the gain/damping ratios of the reference
// experiment, from strongly to weakly unstable.
var ExperimentGainFactors = []float64{5, 3.75, 2.5, 1.25}

// Presets maps a preset name to the settings it expands to.
var Presets = map[string]func() []*Settings{
	"example":    func() []*Settings { return []*Settings{Example()} },
	"experiment": Experiment,
	"forced":     func() []*Settings { return []*Settings{Forced()} },
}

// Example is a single short stochastic trial with the default combustor.
func Example() *Settings {
	return Default()
}

// Experiment sweeps the gain factor with histogram observers, one settings
// document per factor.
func Experiment() []*Settings {
	base := Default()
	base.Name = ""
	base.Parameters.Noise = 0.06
	base.Parameters.Timestep /= 2
	base.Parameters.Duration = 2000
	base.Observer = ObserverConfig{
		Type:           "histogram",
		Stride:         10,
		Bins:           100,
		AmplitudeLimit: 2.5,
	}
	base.Trials = 8

	out, err := Expand(base, "gain_factor", ExperimentGainFactors)
	if err != nil {
		panic(err)
	}
	return out
}

// Forced drives a uniform annulus with conventional flames at resonance
// without noise.
func Forced() *Settings {
	s := Default()
	s.Name = "forced"
	s.Output.Group = "forced"
	s.Parameters.Damping = 0.1
	s.Parameters.Gain = 1.0
	s.Parameters.Noise = 0
	s.Parameters.Burners = 0
	s.Parameters.Duration = 10
	s.Parameters.InitialMode.Amplitude = 2
	s.Saturation.Coefficient = 10
	s.Flame = FlameConfig{Type: "conventional"}
	s.Forcing = ForcingConfig{
		Frequency: 100,
		Inputs:    []physics.Input{{Amplitude: 0.05}},
	}
	s.Observer = ObserverConfig{Type: "timeseries", Stride: 1}
	return s
}

// GetPreset returns fresh copies of the named preset, nil when unknown.
func GetPreset(name string) []*Settings {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
