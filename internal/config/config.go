package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/azisim/internal/dynamo"
	"github.com/san-kum/azisim/internal/physics"
)

const (
	DefaultDt        = 1e-3
	DefaultDuration  = 500.0
	DefaultGain      = 0.16 / math.Pi
	DefaultDamping   = 0.2 * DefaultGain
	DefaultNoise     = 0.06
	DefaultBurners   = 12
	DefaultModeOrder = 1
	DefaultStride    = 20
	DefaultTrials    = 1
	DefaultSeed      = 1
)

// Settings is one simulation request. The same document drives every trial
// of the request; trials differ only by their seed.
type Settings struct {
	Name       string           `yaml:"name" json:"name"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Parameters ParametersConfig `yaml:"parameters" json:"parameters"`
	Integrator string           `yaml:"integrator" json:"integrator"`
	Saturation SaturationConfig `yaml:"saturation" json:"saturation"`
	Flame      FlameConfig      `yaml:"describing_function" json:"describing_function"`
	Forcing    ForcingConfig    `yaml:"forcing" json:"forcing"`
	Observer   ObserverConfig   `yaml:"observer" json:"observer"`
	Trials     int              `yaml:"trials" json:"trials"`
	Seed       uint64           `yaml:"seed" json:"seed"`
}

type OutputConfig struct {
	Group string `yaml:"group" json:"group"`
}

type ParametersConfig struct {
	Timestep        float64     `yaml:"timestep" json:"timestep"`
	Duration        float64     `yaml:"duration" json:"duration"`
	Damping         float64     `yaml:"damping" json:"damping"`
	Gain            float64     `yaml:"gain" json:"gain"`
	Noise           float64     `yaml:"noise" json:"noise"`
	ModeOrder       int         `yaml:"mode_order" json:"mode_order"`
	Burners         int         `yaml:"burners" json:"burners"`
	DivergenceLimit float64     `yaml:"divergence_limit,omitempty" json:"divergence_limit,omitempty"`
	InitialMode     dynamo.Mode `yaml:"initial_mode" json:"initial_mode"`
}

type SaturationConfig struct {
	Type        string  `yaml:"type" json:"type"`
	Coefficient float64 `yaml:"coefficient" json:"coefficient"`
}

// FlameConfig selects the describing function of the flames. GainRatio is
// used by the simplified azimuthal describing function only.
type FlameConfig struct {
	Type      string  `yaml:"type" json:"type"`
	GainRatio float64 `yaml:"gain_ratio,omitempty" json:"gain_ratio,omitempty"`
}

type ForcingConfig struct {
	Frequency      float64         `yaml:"frequency" json:"frequency"`
	Eigenfrequency float64         `yaml:"eigenfrequency,omitempty" json:"eigenfrequency,omitempty"`
	Inputs         []physics.Input `yaml:"inputs" json:"inputs"`
}

type ObserverConfig struct {
	Type              string  `yaml:"type" json:"type"`
	Stride            int     `yaml:"stride" json:"stride"`
	Bins              int     `yaml:"bins,omitempty" json:"bins,omitempty"`
	AmplitudeLimit    float64 `yaml:"amplitude_limit,omitempty" json:"amplitude_limit,omitempty"`
	MaxAmplitudeLimit float64 `yaml:"max_amplitude_limit,omitempty" json:"max_amplitude_limit,omitempty"`
}

func Default() *Settings {
	return &Settings{
		Name:   "example",
		Output: OutputConfig{Group: "example"},
		Parameters: ParametersConfig{
			Timestep:    DefaultDt,
			Duration:    DefaultDuration,
			Damping:     DefaultDamping,
			Gain:        DefaultGain,
			Noise:       DefaultNoise,
			ModeOrder:   DefaultModeOrder,
			Burners:     DefaultBurners,
			InitialMode: dynamo.Mode{Amplitude: 1},
		},
		Integrator: "euler-maruyama",
		Saturation: SaturationConfig{Type: "tangent", Coefficient: physics.DefaultSaturationCoefficient},
		Flame:      FlameConfig{Type: "simplified", GainRatio: physics.DefaultGainRatio},
		Observer:   ObserverConfig{Type: "timeseries", Stride: DefaultStride},
		Trials:     DefaultTrials,
		Seed:       DefaultSeed,
	}
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	c.Forcing.Inputs = append([]physics.Input(nil), s.Forcing.Inputs...)
	return &c
}

// Group returns the output group, falling back to the settings name.
func (s *Settings) Group() string {
	if s.Output.Group != "" {
		return s.Output.Group
	}
	return s.Name
}

// Validate checks every numeric field. Names of integrators, saturations and
// observers are resolved by the experiment registry.
func (s *Settings) Validate() error {
	var errs []error
	check := func(ok bool, field, format string, args ...any) {
		if !ok {
			errs = append(errs, dynamo.Invalid(field, format, args...))
		}
	}
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	p := s.Parameters
	check(p.Timestep > 0 && finite(p.Timestep), "parameters.timestep", "must be finite and positive, got %v", p.Timestep)
	check(p.Duration > 0 && finite(p.Duration), "parameters.duration", "must be finite and positive, got %v", p.Duration)
	check(p.Duration >= p.Timestep, "parameters.duration", "%v is shorter than one time step", p.Duration)
	check(finite(p.Damping), "parameters.damping", "must be finite, got %v", p.Damping)
	check(p.Gain >= 0 && finite(p.Gain), "parameters.gain", "must be finite and non-negative, got %v", p.Gain)
	check(p.Noise >= 0 && finite(p.Noise), "parameters.noise", "must be finite and non-negative, got %v", p.Noise)
	check(p.ModeOrder >= 1, "parameters.mode_order", "must be at least 1, got %d", p.ModeOrder)
	check(p.Burners == 0 || p.Burners > 2*p.ModeOrder, "parameters.burners", "must be 0 or greater than %d, got %d", 2*p.ModeOrder, p.Burners)
	check(p.DivergenceLimit >= 0 && finite(p.DivergenceLimit), "parameters.divergence_limit", "must be finite and non-negative, got %v", p.DivergenceLimit)
	check(p.InitialMode.Valid() && finite(p.InitialMode.Orientation) && finite(p.InitialMode.Phase),
		"parameters.initial_mode", "amplitude must be non-negative and |nature| ≤ π/4, got %+v", p.InitialMode)

	check(s.Saturation.Type != "", "saturation.type", "must be set")
	check(s.Saturation.Coefficient >= 0 && finite(s.Saturation.Coefficient), "saturation.coefficient", "must be finite and non-negative, got %v", s.Saturation.Coefficient)

	check(s.Flame.Type != "", "describing_function.type", "must be set")
	check(s.Flame.GainRatio >= 0 && finite(s.Flame.GainRatio), "describing_function.gain_ratio", "must be finite and non-negative, got %v", s.Flame.GainRatio)

	check(finite(s.Forcing.Frequency), "forcing.frequency", "must be finite")
	check(finite(s.Forcing.Eigenfrequency), "forcing.eigenfrequency", "must be finite")
	for i, in := range s.Forcing.Inputs {
		check(in.Amplitude >= 0 && finite(in.Amplitude), fmt.Sprintf("forcing.inputs[%d].amplitude", i), "must be finite and non-negative, got %v", in.Amplitude)
		check(finite(in.Phase), fmt.Sprintf("forcing.inputs[%d].phase", i), "must be finite")
		check(finite(in.Position), fmt.Sprintf("forcing.inputs[%d].position", i), "must be finite")
	}

	check(s.Observer.Type != "", "observer.type", "must be set")
	check(s.Observer.Stride >= 1, "observer.stride", "must be at least 1, got %d", s.Observer.Stride)
	check(s.Observer.Bins >= 0, "observer.bins", "must be positive, got %d", s.Observer.Bins)
	check(s.Observer.AmplitudeLimit >= 0 && finite(s.Observer.AmplitudeLimit), "observer.amplitude_limit", "must be finite and non-negative")
	check(s.Observer.MaxAmplitudeLimit >= 0 && finite(s.Observer.MaxAmplitudeLimit), "observer.max_amplitude_limit", "must be finite and non-negative")

	check(s.Trials >= 1, "trials", "must be at least 1, got %d", s.Trials)
	check(s.Group() != "", "output.group", "must be set")

	return errors.Join(errs...)
}

// Load reads a settings file. JSON documents are parsed by the YAML decoder;
// unknown fields are rejected. Missing fields keep their defaults and a
// missing name is taken from the file name.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse reads and validates settings from r.
func Parse(r io.Reader) (*Settings, error) {
	s, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func decode(r io.Reader) (*Settings, error) {
	s := Default()
	s.Name = ""
	s.Output.Group = ""

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidInput, err)
	}
	return s, nil
}

// Save writes the settings as JSON when path ends in .json and as YAML
// otherwise.
func Save(path string, s *Settings) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(s, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
