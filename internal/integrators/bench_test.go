package integrators

import (
	"testing"

	"github.com/san-kum/azisim/internal/dynamo"
	"github.com/san-kum/azisim/internal/physics"
)

func benchAnnulus(b *testing.B, burners int) dynamo.System {
	b.Helper()
	sat, err := physics.NewTangent(6)
	if err != nil {
		b.Fatal(err)
	}
	f, err := physics.NewForcing(1, 100, 99, []physics.Input{{Amplitude: 0.05}})
	if err != nil {
		b.Fatal(err)
	}
	sys, err := physics.NewAnnulus(0.1, 0.5, 0.06, 1, burners, sat, f)
	if err != nil {
		b.Fatal(err)
	}
	return sys
}

func benchStep(b *testing.B, s dynamo.Stepper, burners int) {
	sys := benchAnnulus(b, burners)
	x := dynamo.FromMode(dynamo.Mode{Amplitude: 0.2, Nature: 0.1})
	dW := dynamo.FromComponents(0.01, -0.01, 0.02, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, _ = s.Step(sys, x, float64(i)*1e-3, 1e-3, dW)
	}
}

func BenchmarkEulerMaruyama(b *testing.B) { benchStep(b, NewEulerMaruyama(), 0) }

func BenchmarkHeun(b *testing.B) { benchStep(b, NewHeun(), 0) }

func BenchmarkRK4(b *testing.B) { benchStep(b, NewRK4(), 0) }

func BenchmarkEulerMaruyama_Burners12(b *testing.B) { benchStep(b, NewEulerMaruyama(), 12) }

func BenchmarkHeun_Burners12(b *testing.B) { benchStep(b, NewHeun(), 12) }
