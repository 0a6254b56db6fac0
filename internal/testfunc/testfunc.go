// Package testfunc holds the sample functions used by tests and by the
// command line tool to exercise the learners.
package testfunc

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/thalesfsp/adaptive"
)

// Func1D is a scalar function of one variable.
type Func1D func(x float64) float64

// Func2D is a scalar function of a point in the plane.
type Func2D func(p adaptive.Point2) float64

// Noisy draws one random sample for a seed.
type Noisy func(seed int) float64

// Peak is a sharp Lorentzian-like peak of width w centred on x0 over a
// linear background.
func Peak(x0, w float64) Func1D {
	return func(x float64) float64 {
		return x + w*w/(w*w+(x-x0)*(x-x0))
	}
}

// TanhStep is a smoothed step of width w at x0.
func TanhStep(x0, w float64) Func1D {
	return func(x float64) float64 {
		return math.Tanh((x - x0) / w)
	}
}

// Ring is a gaussian ring of radius r and width w around the origin.
func Ring(r, w float64) Func2D {
	return func(p adaptive.Point2) float64 {
		d := math.Hypot(p[0], p[1]) - r

		return p[0] + math.Exp(-d*d/(w*w))
	}
}

// Saddle is x² - y².
func Saddle(p adaptive.Point2) float64 {
	return p[0]*p[0] - p[1]*p[1]
}

// Normal draws from N(mean, sd²) using the seed as the source, so the same
// seed always yields the same sample.
func Normal(mean, sd float64) Noisy {
	return func(seed int) float64 {
		return mean + sd*rand.New(rand.NewSource(int64(seed))).NormFloat64()
	}
}

var (
	funcs1D = map[string]Func1D{
		"peak": Peak(0.3, 0.01),
		"tanh": TanhStep(0, 0.05),
		"sin":  func(x float64) float64 { return math.Sin(10 * x) },
		"sqrt": func(x float64) float64 { return math.Sqrt(math.Abs(x)) },
	}

	funcs2D = map[string]Func2D{
		"ring":   Ring(0.5, 0.05),
		"saddle": Saddle,
	}
)

// Lookup1D returns the named 1-D function.
func Lookup1D(name string) (Func1D, error) {
	f, ok := funcs1D[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown 1-D function %q (have %v)", adaptive.ErrInvalidInput, name, Names1D())
	}

	return f, nil
}

// Lookup2D returns the named 2-D function.
func Lookup2D(name string) (Func2D, error) {
	f, ok := funcs2D[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown 2-D function %q (have %v)", adaptive.ErrInvalidInput, name, Names2D())
	}

	return f, nil
}

// Names1D lists the 1-D functions, sorted.
func Names1D() []string {
	return names(funcs1D)
}

// Names2D lists the 2-D functions, sorted.
func Names2D() []string {
	return names(funcs2D)
}

func names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}
