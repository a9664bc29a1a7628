package experiment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/azisim/internal/config"
	"github.com/san-kum/azisim/internal/dynamo"
	"github.com/san-kum/azisim/internal/observers"
	"github.com/san-kum/azisim/internal/physics"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func noisySettings(name, observer string, trials int) *config.Settings {
	s := config.Default()
	s.Name = name
	s.Output.Group = name
	s.Parameters.Duration = 2
	s.Parameters.Timestep = 1e-3
	s.Parameters.Noise = 0.3
	s.Observer = config.ObserverConfig{Type: observer, Stride: 10, Bins: 20, AmplitudeLimit: 2}
	s.Trials = trials
	s.Seed = 42
	return s
}

func fieldValues(s observers.Summary, name string) []float64 {
	f, ok := observers.FieldByName(s, name)
	ExpectWithOffset(1, ok).To(BeTrue(), "missing field %s", name)
	return f.Values
}

// signObserver fails when the first observed sin(nθ) component is positive,
// which depends only on the trial's noise stream.
type signObserver struct {
	*observers.TimeSeries
	seen bool
}

func (o *signObserver) Observe(t float64, x dynamo.State) error {
	if !o.seen {
		o.seen = true
		if x.Imag > 0 {
			return errors.New("positive sine component")
		}
	}
	return o.TimeSeries.Observe(t, x)
}

var _ = Describe("Registry", func() {
	It("resolves every built-in name", func() {
		r := NewRegistry()
		Expect(r.ListSaturations()).To(Equal([]string{"arctangent", "exponential", "tangent"}))
		Expect(r.ListSteppers()).To(Equal([]string{"euler-maruyama", "heun", "rk4"}))
		Expect(r.ListObservers()).To(Equal([]string{"histogram", "timeseries"}))
		Expect(r.ListFlames()).To(Equal([]string{"conventional", "simplified"}))
	})

	It("wires the describing function into the system", func() {
		s := noisySettings("flame", "timeseries", 1)
		s.Flame = config.FlameConfig{Type: "simplified", GainRatio: 2}
		plan, err := NewRegistry().Build(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Flame.Name()).To(Equal("simplified"))
		Expect(plan.System.HeatRelease).To(BeIdenticalTo(plan.Flame))

		s.Flame.GainRatio = -1
		_, err = NewRegistry().Build(s)
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})

	It("rejects unknown names as invalid input", func() {
		r := NewRegistry()
		_, err := r.GetSaturation("cubic", 1)
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
		_, err = r.GetStepper("leapfrog")
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
		_, err = r.GetObserver("spectrum")
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
		_, err = r.GetFlame(config.FlameConfig{Type: "linear"})
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})

	It("builds a plan with the expected sample count", func() {
		plan, err := NewRegistry().Build(noisySettings("plan", "timeseries", 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Simulator.Steps()).To(Equal(2000))
		Expect(plan.Samples).To(Equal(200))
		Expect(plan.Initial.Norm()).To(BeNumerically("~", 1, 1e-12))
	})

	It("rejects bad observer parameters at build time", func() {
		s := noisySettings("bad", "histogram", 1)
		s.Observer.MaxAmplitudeLimit = 1
		_, err := NewRegistry().Build(s)
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})
})

var _ = Describe("Reduce", func() {
	var results []TrialResult

	BeforeEach(func() {
		plan, err := NewRegistry().Build(noisySettings("reduce", "histogram", 8))
		Expect(err).NotTo(HaveOccurred())
		results = nil
		for k := 0; k < 8; k++ {
			results = append(results, plan.RunTrial(context.Background(), k))
		}
	})

	It("is independent of completion order", func() {
		want, err := Reduce("reduce", results)
		Expect(err).NotTo(HaveOccurred())

		rng := rand.New(rand.NewPCG(1, 2))
		for range 5 {
			shuffled := append([]TrialResult(nil), results...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			got, err := Reduce("reduce", shuffled)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Summary.Fields()).To(Equal(want.Summary.Fields()))
			Expect(got.Summary.Attrs()).To(Equal(want.Summary.Attrs()))
		}
	})

	It("records failed trials without merging them", func() {
		results[3].Err = &dynamo.SimulationError{Step: 10, Wrapped: dynamo.ErrNumericalInstability}
		results[3].Summary = nil

		agg, err := Reduce("reduce", results)
		Expect(err).NotTo(HaveOccurred())
		Expect(agg.Completed).To(Equal(7))
		Expect(agg.Failures).To(HaveLen(1))
		Expect(agg.Failures[0].Index).To(Equal(3))
		Expect(agg.FailureCounts()).To(HaveKeyWithValue("numerical_instability", 1))

		trials, _ := observers.AttrByName(agg.Summary, "trials")
		Expect(trials).To(Equal(7.0))
	})
})

var _ = Describe("Driver", func() {
	It("gives bit-identical results for any worker count", func() {
		var baseline []Outcome
		for _, workers := range []int{1, 3, 8} {
			d := &Driver{Workers: workers, Logger: quiet}
			out := d.RunAll(context.Background(),
				noisySettings("ts", "timeseries", 6),
				noisySettings("hist", "histogram", 6),
			)
			Expect(out).To(HaveLen(2))
			for _, o := range out {
				Expect(o.Err).NotTo(HaveOccurred())
				Expect(o.Result.Completed).To(Equal(6))
			}
			if baseline == nil {
				baseline = out
				continue
			}
			for i := range out {
				Expect(out[i].Result.Summary.Fields()).To(Equal(baseline[i].Result.Summary.Fields()))
				Expect(out[i].Result.Summary.Attrs()).To(Equal(baseline[i].Result.Summary.Attrs()))
			}
		}
	})

	It("produces different ensembles for different base seeds", func() {
		d := &Driver{Workers: 2, Logger: quiet}
		a := noisySettings("a", "timeseries", 2)
		b := noisySettings("b", "timeseries", 2)
		b.Seed = 43
		out := d.RunAll(context.Background(), a, b)
		Expect(fieldValues(out[0].Result.Summary, "amplitude")).NotTo(Equal(fieldValues(out[1].Result.Summary, "amplitude")))
	})

	It("isolates failing trials and settings", func() {
		r := NewRegistry()
		r.RegisterObserver("picky", func(_ config.ObserverConfig, samples int, _ observers.ModeMap) (observers.Observer, error) {
			return &signObserver{TimeSeries: observers.NewTimeSeries(samples)}, nil
		})

		picky := noisySettings("picky", "picky", 16)
		unstable := noisySettings("unstable", "timeseries", 3)
		unstable.Parameters.Gain = 1e4
		unstable.Parameters.Burners = 0
		unstable.Parameters.Noise = 0
		unstable.Saturation.Coefficient = 0
		invalid := noisySettings("invalid", "timeseries", 3)
		invalid.Integrator = "leapfrog"
		healthy := noisySettings("healthy", "timeseries", 3)

		var failed []int
		for _, workers := range []int{1, 8} {
			d := &Driver{Registry: r, Workers: workers, Logger: quiet}
			out := d.RunAll(context.Background(), picky, unstable, invalid, healthy)

			Expect(out[0].Err).NotTo(HaveOccurred())
			agg := out[0].Result
			Expect(agg.Completed + len(agg.Failures)).To(Equal(16))
			Expect(agg.Completed).To(BeNumerically(">", 0))
			Expect(agg.Failures).NotTo(BeEmpty())
			Expect(agg.FailureCounts()).To(HaveKeyWithValue("observer_failure", len(agg.Failures)))
			var idx []int
			for _, f := range agg.Failures {
				idx = append(idx, f.Index)
			}
			if failed == nil {
				failed = idx
			} else {
				Expect(idx).To(Equal(failed))
			}

			Expect(out[1].Err).To(MatchError(dynamo.ErrNumericalInstability))
			Expect(out[1].Result.Failures).To(HaveLen(3))

			Expect(out[2].Err).To(MatchError(dynamo.ErrInvalidInput))
			Expect(out[2].Result).To(BeNil())

			Expect(out[3].Err).NotTo(HaveOccurred())
			Expect(out[3].Result.Completed).To(Equal(3))
		}
	})

	It("fails every trial of a negatively damped system as unstable", func() {
		s := noisySettings("undamped", "timeseries", 4)
		s.Parameters.Damping = -5
		s.Parameters.Noise = 0
		s.Parameters.Duration = 10

		d := &Driver{Workers: 2, Logger: quiet}
		agg, err := d.Run(context.Background(), s)
		Expect(err).To(MatchError(dynamo.ErrNumericalInstability))
		Expect(agg).NotTo(BeNil())
		Expect(agg.Completed).To(BeZero())
		Expect(agg.Failures).To(HaveLen(4))
		Expect(agg.FailureCounts()).To(Equal(map[string]int{"numerical_instability": 4}))
	})

	It("reports progress for every trial", func() {
		var mu sync.Mutex
		var events []ProgressEvent
		d := &Driver{Workers: 4, Logger: quiet, OnTrial: func(e ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		}}
		d.RunAll(context.Background(), noisySettings("a", "timeseries", 3), noisySettings("b", "histogram", 2))

		Expect(events).To(HaveLen(5))
		maxDone := 0
		for _, e := range events {
			Expect(e.Total).To(Equal(5))
			maxDone = max(maxDone, e.Done)
		}
		Expect(maxDone).To(Equal(5))
	})

	It("stops on cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := &Driver{Workers: 2, Logger: quiet}
		_, err := d.Run(ctx, noisySettings("cancel", "timeseries", 4))
		Expect(err).To(MatchError(context.Canceled))
	})
})

// reducedAmplitude integrates dA/dt = (βS(A) - α)A + f with RK4 on a fine
// grid; it is the exact slow-flow amplitude equation of a uniform annulus
// forced along its initial standing mode.
func reducedAmplitude(sat physics.Saturation, alpha, beta, f, a0, duration float64) float64 {
	rhs := func(a float64) float64 {
		s, _ := sat.Respond(a)
		return (beta*s-alpha)*a + f
	}
	const h = 1e-4
	a := a0
	for i := 0; i < int(math.Round(duration/h)); i++ {
		k1 := rhs(a)
		k2 := rhs(a + h/2*k1)
		k3 := rhs(a + h/2*k2)
		k4 := rhs(a + h*k3)
		a += h / 6 * (k1 + 2*k2 + 2*k3 + k4)
	}
	return a
}

func forcedFixedPoint(sat physics.Saturation, alpha, beta, f float64) float64 {
	lo, hi := 0.0, 100.0
	for range 200 {
		mid := (lo + hi) / 2
		s, _ := sat.Respond(mid)
		if (beta*s-alpha)*mid+f > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

var _ = Describe("Forced response", func() {
	It("settles toward the predicted amplitude", func() {
		s := config.Forced()
		Expect(s.Parameters.Timestep).To(Equal(0.001))
		Expect(s.Parameters.Duration).To(Equal(10.0))

		d := &Driver{Workers: 1, Logger: quiet}
		agg, err := d.Run(context.Background(), s)
		Expect(err).NotTo(HaveOccurred())

		times := fieldValues(agg.Summary, "time")
		amps := fieldValues(agg.Summary, "amplitude")
		Expect(amps).To(HaveLen(10000))
		Expect(times[len(times)-1]).To(BeNumerically("~", 10, 1e-9))
		Expect(amps[0]).To(BeNumerically("~", 2.0, 1e-2))

		sat, _ := physics.NewTangent(s.Saturation.Coefficient)
		p := s.Parameters
		f := s.Forcing.Inputs[0].Amplitude
		fixed := forcedFixedPoint(sat, p.Damping, p.Gain, f)
		Expect(fixed).To(BeNumerically(">", 2.3))
		Expect(fixed).To(BeNumerically("<", 2.6))

		final := amps[len(amps)-1]
		want := reducedAmplitude(sat, p.Damping, p.Gain, f, p.InitialMode.Amplitude, p.Duration)
		Expect(final).To(BeNumerically("~", want, 5e-3))
		Expect(math.Abs(final - fixed)).To(BeNumerically("<", 0.5*math.Abs(p.InitialMode.Amplitude-fixed)))

		// Forcing along the initial standing mode keeps the mode standing.
		for _, chi := range fieldValues(agg.Summary, "nature") {
			Expect(math.Abs(chi)).To(BeNumerically("<", 1e-9))
		}
	})
})
