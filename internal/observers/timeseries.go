package observers

import (
	"math"

	"github.com/san-kum/azisim/internal/dynamo"
)

const KindTimeSeries = "timeseries"

// Sample is one retained point of a trajectory.
type Sample struct {
	Time float64
	Mode dynamo.Mode
}

// TimeSeries records the mode parameters of every observed state.
type TimeSeries struct {
	// HeatRelease gives the heat release rate mode recorded next to the
	// acoustic mode.
	HeatRelease ModeMap

	samples   []Sample
	last      dynamo.Mode
	finalized bool
}

// NewTimeSeries reserves room for capacity samples, usually
// floor(steps/stride).
func NewTimeSeries(capacity int) *TimeSeries {
	if capacity < 0 {
		capacity = 0
	}
	return &TimeSeries{samples: make([]Sample, 0, capacity)}
}

func (o *TimeSeries) Observe(t float64, x dynamo.State) error {
	if o.finalized {
		return failure("timeseries: observe after finalize")
	}
	m := x.Mode(o.last)
	o.last = m
	o.samples = append(o.samples, Sample{Time: t, Mode: m})
	return nil
}

// Samples returns the recorded trajectory.
func (o *TimeSeries) Samples() []Sample { return o.samples }

func (o *TimeSeries) Finalize() (Summary, error) {
	if o.finalized {
		return nil, failure("timeseries: already finalized")
	}
	o.finalized = true

	n := len(o.samples)
	s := newTimeSeriesSummary(n)
	s.trials = 1
	for i, p := range o.samples {
		a := p.Mode.Amplitude
		s.time[i] = p.Time
		s.amplitude[i] = a
		s.amplitudeSq[i] = a * a
		s.nature[i] = p.Mode.Nature
		s.cos2Orient[i], s.sin2Orient[i] = cosSin(2 * p.Mode.Orientation)
		s.cosPhase[i], s.sinPhase[i] = cosSin(p.Mode.Phase)
		h := o.HeatRelease.apply(p.Mode)
		s.hrrAmplitude[i] = h.Amplitude
		s.hrrNature[i] = h.Nature
	}
	return s, nil
}

func cosSin(x float64) (float64, float64) {
	s, c := math.Sincos(x)
	return c, s
}

// TimeSeriesSummary holds ensemble sums per sample index, so merging trials
// is elementwise addition. Angles are summed as unit vectors and read back
// as circular means; the orientation is π-periodic and is averaged on 2α.
type TimeSeriesSummary struct {
	trials      int
	time        []float64
	amplitude   []float64
	amplitudeSq []float64
	nature      []float64
	cos2Orient  []float64
	sin2Orient  []float64
	cosPhase    []float64
	sinPhase    []float64

	// heat release rate mode
	hrrAmplitude []float64
	hrrNature    []float64
}

func newTimeSeriesSummary(n int) *TimeSeriesSummary {
	return &TimeSeriesSummary{
		time:        make([]float64, n),
		amplitude:   make([]float64, n),
		amplitudeSq: make([]float64, n),
		nature:      make([]float64, n),
		cos2Orient:  make([]float64, n),
		sin2Orient:  make([]float64, n),
		cosPhase:    make([]float64, n),
		sinPhase:    make([]float64, n),

		hrrAmplitude: make([]float64, n),
		hrrNature:    make([]float64, n),
	}
}

func (s *TimeSeriesSummary) Kind() string { return KindTimeSeries }

func (s *TimeSeriesSummary) Len() int { return len(s.time) }

func (s *TimeSeriesSummary) Trials() int { return s.trials }

func (s *TimeSeriesSummary) Merge(other Summary) (Summary, error) {
	o, ok := other.(*TimeSeriesSummary)
	if !ok {
		return nil, failure("cannot merge %s into %s", other.Kind(), s.Kind())
	}
	if o.Len() != s.Len() {
		return nil, failure("timeseries: length mismatch %d != %d", s.Len(), o.Len())
	}

	n := s.Len()
	m := newTimeSeriesSummary(n)
	m.trials = s.trials + o.trials
	copy(m.time, s.time)
	addInto(m.amplitude, s.amplitude, o.amplitude)
	addInto(m.amplitudeSq, s.amplitudeSq, o.amplitudeSq)
	addInto(m.nature, s.nature, o.nature)
	addInto(m.cos2Orient, s.cos2Orient, o.cos2Orient)
	addInto(m.sin2Orient, s.sin2Orient, o.sin2Orient)
	addInto(m.cosPhase, s.cosPhase, o.cosPhase)
	addInto(m.sinPhase, s.sinPhase, o.sinPhase)
	addInto(m.hrrAmplitude, s.hrrAmplitude, o.hrrAmplitude)
	addInto(m.hrrNature, s.hrrNature, o.hrrNature)
	return m, nil
}

func (s *TimeSeriesSummary) Fields() []Field {
	n := s.Len()
	k := float64(s.trials)
	if k == 0 {
		k = 1
	}

	mean := make([]float64, n)
	std := make([]float64, n)
	orient := make([]float64, n)
	phase := make([]float64, n)
	nature := make([]float64, n)
	hrrAmp := make([]float64, n)
	hrrNature := make([]float64, n)
	for i := 0; i < n; i++ {
		mean[i] = s.amplitude[i] / k
		std[i] = math.Sqrt(math.Max(0, s.amplitudeSq[i]/k-mean[i]*mean[i]))
		orient[i] = 0.5 * math.Atan2(s.sin2Orient[i], s.cos2Orient[i])
		phase[i] = math.Atan2(s.sinPhase[i], s.cosPhase[i])
		nature[i] = s.nature[i] / k
		hrrAmp[i] = s.hrrAmplitude[i] / k
		hrrNature[i] = s.hrrNature[i] / k
	}

	return []Field{
		{Name: "time", Values: append([]float64(nil), s.time...)},
		{Name: "amplitude", Values: mean},
		{Name: "amplitude_std", Values: std},
		{Name: "orientation", Values: orient},
		{Name: "phase", Values: phase},
		{Name: "nature", Values: nature},
		{Name: "hrr_amplitude", Values: hrrAmp},
		{Name: "hrr_nature", Values: hrrNature},
	}
}

func (s *TimeSeriesSummary) Attrs() []Attr {
	return []Attr{{Name: "trials", Value: float64(s.trials)}}
}
