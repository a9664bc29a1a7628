package observers

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/azisim/internal/dynamo"
)

const KindHistogram = "histogram"

const (
	DefaultBins           = 100
	DefaultAmplitudeLimit = 1.0
	defaultLimitFactor    = 10
)

// HistogramConfig sets the binning of a Histogram. The amplitude range
// starts at [0, AmplitudeLimit) and grows in whole multiples of it while
// the amplitude stays within one AmplitudeLimit above MaxAmplitudeLimit.
type HistogramConfig struct {
	Bins              int
	AmplitudeLimit    float64
	MaxAmplitudeLimit float64
}

func (c HistogramConfig) withDefaults() HistogramConfig {
	if c.Bins == 0 {
		c.Bins = DefaultBins
	}
	if c.AmplitudeLimit == 0 {
		c.AmplitudeLimit = DefaultAmplitudeLimit
	}
	if c.MaxAmplitudeLimit == 0 {
		c.MaxAmplitudeLimit = defaultLimitFactor * c.AmplitudeLimit
	}
	return c
}

// Validate reports a configuration that cannot bin samples.
func (c HistogramConfig) Validate() error {
	c = c.withDefaults()
	if c.Bins < 1 {
		return dynamo.Invalid("observer.bins", "must be positive, got %d", c.Bins)
	}
	if !(c.AmplitudeLimit > 0) || math.IsInf(c.AmplitudeLimit, 0) {
		return dynamo.Invalid("observer.amplitude_limit", "must be finite and positive, got %v", c.AmplitudeLimit)
	}
	if !(c.MaxAmplitudeLimit >= c.AmplitudeLimit) || math.IsInf(c.MaxAmplitudeLimit, 0) {
		return dynamo.Invalid("observer.max_amplitude_limit", "must be finite and at least amplitude_limit, got %v", c.MaxAmplitudeLimit)
	}
	return nil
}

// Histogram accumulates fixed-width histograms of the mode parameters and
// running moments of amplitude and nature angle.
type Histogram struct {
	// HeatRelease gives the heat release rate mode whose nature angle is
	// binned next to the acoustic one.
	HeatRelease ModeMap

	cfg       HistogramConfig
	width     float64
	acc       *HistogramSummary
	last      dynamo.Mode
	finalized bool
}

func NewHistogram(cfg HistogramConfig) (*Histogram, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	width := cfg.AmplitudeLimit / float64(cfg.Bins)
	return &Histogram{
		cfg:   cfg,
		width: width,
		acc:   newHistogramSummary(cfg.Bins, width, cfg.Bins),
	}, nil
}

func (o *Histogram) Observe(_ float64, x dynamo.State) error {
	if o.finalized {
		return failure("histogram: observe after finalize")
	}
	m := x.Mode(o.last)
	o.last = m

	a := m.Amplitude
	if a >= o.limit() {
		if err := o.grow(a); err != nil {
			return err
		}
	}

	h := o.acc
	h.amplitude[clampBin(int(a/o.width), len(h.amplitude))]++
	h.orientation[angleBin(m.Orientation, -math.Pi/2, math.Pi/2, h.bins)]++
	h.phase[angleBin(m.Phase, -math.Pi, math.Pi, h.bins)]++
	h.nature[angleBin(m.Nature, -math.Pi/4, math.Pi/4, h.bins)]++
	h.hrrNature[angleBin(o.HeatRelease.apply(m).Nature, -math.Pi/4, math.Pi/4, h.bins)]++
	h.amplitudeMoments.Add(a)
	h.natureMoments.Add(m.Nature)
	return nil
}

func (o *Histogram) limit() float64 { return o.width * float64(len(o.acc.amplitude)) }

// grow extends the amplitude range to the next whole multiple of the initial
// limit above a. The bin width never changes. Growth is refused once the
// whole multiples below a exceed MaxAmplitudeLimit, so the final range may
// overshoot it by less than one initial limit.
func (o *Histogram) grow(a float64) error {
	k := math.Floor(a/o.cfg.AmplitudeLimit) + 1
	limit := k * o.cfg.AmplitudeLimit
	if (k-1)*o.cfg.AmplitudeLimit > o.cfg.MaxAmplitudeLimit || math.IsInf(limit, 0) {
		return failure("histogram: amplitude %g exceeds max_amplitude_limit %g", a, o.cfg.MaxAmplitudeLimit)
	}
	n := int(k) * o.cfg.Bins
	if n > len(o.acc.amplitude) {
		o.acc.amplitude = append(o.acc.amplitude, make([]float64, n-len(o.acc.amplitude))...)
	}
	return nil
}

func clampBin(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func angleBin(v, lo, hi float64, n int) int {
	return clampBin(int(math.Floor((v-lo)/(hi-lo)*float64(n))), n)
}

func (o *Histogram) Finalize() (Summary, error) {
	if o.finalized {
		return nil, failure("histogram: already finalized")
	}
	o.finalized = true
	o.acc.trials = 1
	return o.acc, nil
}

// HistogramSummary holds bin counts of amplitude (variable length, fixed
// width), orientation, phase and nature angle.
type HistogramSummary struct {
	bins             int
	width            float64
	trials           int
	amplitude        []float64
	orientation      []float64
	phase            []float64
	nature           []float64
	hrrNature        []float64
	amplitudeMoments Moments
	natureMoments    Moments
}

func newHistogramSummary(bins int, width float64, amplitudeBins int) *HistogramSummary {
	return &HistogramSummary{
		bins:        bins,
		width:       width,
		amplitude:   make([]float64, amplitudeBins),
		orientation: make([]float64, bins),
		phase:       make([]float64, bins),
		nature:      make([]float64, bins),
		hrrNature:   make([]float64, bins),
	}
}

func (s *HistogramSummary) Kind() string { return KindHistogram }

func (s *HistogramSummary) Samples() int64 { return s.amplitudeMoments.N }

func (s *HistogramSummary) AmplitudeMoments() Moments { return s.amplitudeMoments }

func (s *HistogramSummary) NatureMoments() Moments { return s.natureMoments }

// Merge zero-pads the shorter amplitude histogram.
func (s *HistogramSummary) Merge(other Summary) (Summary, error) {
	o, ok := other.(*HistogramSummary)
	if !ok {
		return nil, failure("cannot merge %s into %s", other.Kind(), s.Kind())
	}
	if o.bins != s.bins || o.width != s.width {
		return nil, failure("histogram: binning mismatch (%d × %g vs %d × %g)", s.bins, s.width, o.bins, o.width)
	}

	n := max(len(s.amplitude), len(o.amplitude))
	m := newHistogramSummary(s.bins, s.width, n)
	m.trials = s.trials + o.trials
	copy(m.amplitude, s.amplitude)
	for i, c := range o.amplitude {
		m.amplitude[i] += c
	}
	addInto(m.orientation, s.orientation, o.orientation)
	addInto(m.phase, s.phase, o.phase)
	addInto(m.nature, s.nature, o.nature)
	addInto(m.hrrNature, s.hrrNature, o.hrrNature)
	m.amplitudeMoments = s.amplitudeMoments.Merge(o.amplitudeMoments)
	m.natureMoments = s.natureMoments.Merge(o.natureMoments)
	return m, nil
}

func edges(lo, hi float64, n int) []float64 {
	return floats.Span(make([]float64, n+1), lo, hi)
}

func pdf(counts []float64, width float64) []float64 {
	out := make([]float64, len(counts))
	total := floats.Sum(counts)
	if total == 0 {
		return out
	}
	floats.ScaleTo(out, 1/(total*width), counts)
	return out
}

func (s *HistogramSummary) Fields() []Field {
	ampHi := s.width * float64(len(s.amplitude))
	angle := func(name string, counts []float64, lo, hi float64) []Field {
		return []Field{
			{Name: name + "_counts", Values: append([]float64(nil), counts...)},
			{Name: name + "_edges", Values: edges(lo, hi, len(counts))},
			{Name: name + "_pdf", Values: pdf(counts, (hi-lo)/float64(len(counts)))},
		}
	}

	var out []Field
	out = append(out, angle("amplitude", s.amplitude, 0, ampHi)...)
	out = append(out, angle("orientation", s.orientation, -math.Pi/2, math.Pi/2)...)
	out = append(out, angle("phase", s.phase, -math.Pi, math.Pi)...)
	out = append(out, angle("nature", s.nature, -math.Pi/4, math.Pi/4)...)
	out = append(out, angle("hrr_nature", s.hrrNature, -math.Pi/4, math.Pi/4)...)
	return out
}

func (s *HistogramSummary) Attrs() []Attr {
	return []Attr{
		{Name: "trials", Value: float64(s.trials)},
		{Name: "samples", Value: float64(s.amplitudeMoments.N)},
		{Name: "amplitude_limit", Value: s.width * float64(len(s.amplitude))},
		{Name: "amplitude_mean", Value: s.amplitudeMoments.Mean},
		{Name: "amplitude_variance", Value: s.amplitudeMoments.Variance()},
		{Name: "nature_mean", Value: s.natureMoments.Mean},
		{Name: "nature_variance", Value: s.natureMoments.Variance()},
	}
}
