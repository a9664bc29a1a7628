package observers

import (
	"fmt"
	"math"

	"github.com/san-kum/azisim/internal/dynamo"
)

// Observer collects the samples of one trial and turns them into a
// mergeable summary exactly once.
type Observer interface {
	dynamo.Observer
	Finalize() (Summary, error)
}

// ModeMap maps an acoustic mode to the heat release rate mode of the flames.
// A nil ModeMap is the identity.
type ModeMap func(dynamo.Mode) dynamo.Mode

func (f ModeMap) apply(m dynamo.Mode) dynamo.Mode {
	if f == nil {
		return m
	}
	return f(m)
}

// Summary is the per-trial (or merged) outcome of an observer. Merge returns
// a new summary and leaves both operands untouched.
type Summary interface {
	Kind() string
	Merge(other Summary) (Summary, error)
	Fields() []Field
	Attrs() []Attr
}

// Field is a named one-dimensional dataset.
type Field struct {
	Name   string
	Values []float64
}

// Attr is a named scalar attached to a summary.
type Attr struct {
	Name  string
	Value float64
}

func failure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", dynamo.ErrObserverFailure, fmt.Sprintf(format, args...))
}

// Moments is a Welford running mean and variance.
type Moments struct {
	N    int64
	Mean float64
	M2   float64
}

func (m *Moments) Add(x float64) {
	m.N++
	delta := x - m.Mean
	m.Mean += delta / float64(m.N)
	m.M2 += delta * (x - m.Mean)
}

// Merge combines two accumulators with Chan's parallel formula.
func (m Moments) Merge(o Moments) Moments {
	switch {
	case m.N == 0:
		return o
	case o.N == 0:
		return m
	}
	n := m.N + o.N
	delta := o.Mean - m.Mean
	return Moments{
		N:    n,
		Mean: m.Mean + delta*float64(o.N)/float64(n),
		M2:   m.M2 + o.M2 + delta*delta*float64(m.N)*float64(o.N)/float64(n),
	}
}

// Variance returns the population variance, NaN without samples.
func (m Moments) Variance() float64 {
	if m.N == 0 {
		return math.NaN()
	}
	return m.M2 / float64(m.N)
}

func addInto(dst, a, b []float64) []float64 {
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
	return dst
}

// FieldByName returns the named field of s.
func FieldByName(s Summary, name string) (Field, bool) {
	for _, f := range s.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// AttrByName returns the named attribute of s.
func AttrByName(s Summary, name string) (float64, bool) {
	for _, a := range s.Attrs() {
		if a.Name == name {
			return a.Value, true
		}
	}
	return 0, false
}
