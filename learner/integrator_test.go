package learner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/adaptive"
)

func newTestIntegrator(t *testing.T, lo, hi, tol float64) *IntegratorLearner {
	t.Helper()

	cfg := DefaultIntegratorConfig(adaptive.Bounds[float64]{Min: lo, Max: hi})
	cfg.Tol = tol

	q, err := NewIntegratorLearner(cfg)
	require.NoError(t, err)

	return q
}

// integrate drives q in batches until it is done, runs dry or spends max
// points.
func integrate(t *testing.T, q *IntegratorLearner, f func(float64) float64, batch, max int) {
	t.Helper()

	for !q.Done() && q.NPoints() < max {
		xs, _ := q.Ask(batch)
		if len(xs) == 0 {
			return
		}

		for _, x := range xs {
			require.NoError(t, q.Tell(x, f(x)))
		}
	}
}

func TestNewIntegratorLearner_Invalid(t *testing.T) {
	_, err := NewIntegratorLearner(DefaultIntegratorConfig(adaptive.Bounds[float64]{Min: 1, Max: 0}))
	assert.ErrorIs(t, err, adaptive.ErrInvalidBounds)

	cfg := DefaultIntegratorConfig(adaptive.Bounds[float64]{Min: 0, Max: 1})
	cfg.Tol = 0

	_, err = NewIntegratorLearner(cfg)
	assert.ErrorIs(t, err, adaptive.ErrInvalidInput)
}

func TestKronrodRule_Moments(t *testing.T) {
	// K15 is exact up to degree 22 and G7 up to degree 13; odd moments
	// vanish by symmetry.
	for p := 0; p <= 22; p += 2 {
		want := 2 / float64(p+1)

		k := kronrodWeights[7] * math.Pow(0, float64(p))
		for i := 0; i < 7; i++ {
			k += 2 * kronrodWeights[i] * math.Pow(kronrodNodes[i], float64(p))
		}

		assert.InDelta(t, want, k, 1e-15, "K15 moment %d", p)

		if p > 12 {
			continue
		}

		g := gaussWeights[3] * math.Pow(0, float64(p))
		for j := 0; j < 3; j++ {
			g += 2 * gaussWeights[j] * math.Pow(kronrodNodes[2*j+1], float64(p))
		}

		assert.InDelta(t, want, g, 1e-15, "G7 moment %d", p)
	}
}

func TestIntegratorLearner_Polynomial(t *testing.T) {
	q := newTestIntegrator(t, 0, 1, 1e-10)

	xs, improvements := q.Ask(40)
	require.Len(t, xs, nodesPerInterval, "only the root nodes are known to be useful")

	for _, imp := range improvements {
		assert.True(t, math.IsInf(imp, 1))
	}

	assert.True(t, math.IsInf(q.Loss(), 1))
	assert.True(t, math.IsNaN(q.Integral()))

	for _, x := range xs {
		assert.True(t, x > 0 && x < 1)
		require.NoError(t, q.Tell(x, x*x))
	}

	// K15 integrates polynomials of this degree exactly.
	assert.True(t, q.Done())
	assert.InDelta(t, 1.0/3, q.Integral(), 1e-14)
	assert.Len(t, q.Intervals(), 1)
}

func TestIntegratorLearner_BisectsLargestError(t *testing.T) {
	q := newTestIntegrator(t, 0, 1, 1e-8)

	xs, _ := q.Ask(nodesPerInterval)
	for _, x := range xs {
		require.NoError(t, q.Tell(x, math.Sqrt(x)))
	}

	rootErr := q.Loss()
	require.Greater(t, rootErr, 0.0)

	// The halves of the root are the only work left until they complete.
	xs, improvements := q.Ask(100)
	require.Len(t, xs, 2*nodesPerInterval)

	for i, x := range xs {
		assert.InDelta(t, rootErr/(2*nodesPerInterval), improvements[i], 1e-18)

		if i < nodesPerInterval {
			assert.Less(t, x, 0.5)
		} else {
			assert.Greater(t, x, 0.5)
		}
	}

	for _, x := range xs {
		require.NoError(t, q.Tell(x, math.Sqrt(x)))
	}

	assert.Len(t, q.Intervals(), 2)
	assert.Less(t, q.Loss(), rootErr)
}

func TestIntegratorLearner_Converges(t *testing.T) {
	for name, tc := range map[string]struct {
		f      func(float64) float64
		lo, hi float64
		want   float64
	}{
		"sqrt":  {f: math.Sqrt, lo: 0, hi: 1, want: 2.0 / 3},
		"sin":   {f: math.Sin, lo: 0, hi: math.Pi, want: 2},
		"exp":   {f: math.Exp, lo: -1, hi: 1, want: math.E - 1/math.E},
		"spike": {f: func(x float64) float64 { return 1 / (1e-4 + x*x) }, lo: -1, hi: 1, want: 2 * math.Atan(100) / 1e-2},
	} {
		t.Run(name, func(t *testing.T) {
			q := newTestIntegrator(t, tc.lo, tc.hi, 1e-6)
			integrate(t, q, tc.f, 10, 5000)

			require.True(t, q.Done(), "loss %v after %d points", q.Loss(), q.NPoints())
			assert.InDelta(t, tc.want, q.Integral(), 1e-5)

			intervals := q.Intervals()
			assert.Equal(t, tc.lo, intervals[0].Left)
			assert.Equal(t, tc.hi, intervals[len(intervals)-1].Right)

			for i := 1; i < len(intervals); i++ {
				assert.Equal(t, intervals[i-1].Right, intervals[i].Left)
			}
		})
	}
}

func TestIntegratorLearner_FailedNode(t *testing.T) {
	q := newTestIntegrator(t, 0, 1, 1e-10)

	xs, _ := q.Ask(nodesPerInterval)
	require.Equal(t, 0.5, xs[nodesPerInterval-1])

	for _, x := range xs[:nodesPerInterval-1] {
		require.NoError(t, q.Tell(x, x*x))
	}

	assert.ErrorIs(t, q.Tell(0.5, math.NaN()), adaptive.ErrEvaluation)
	assert.True(t, math.IsInf(q.Loss(), 1))

	// The halves do not use the failed midpoint.
	xs, _ = q.Ask(100)
	require.Len(t, xs, 2*nodesPerInterval)
	assert.NotContains(t, xs, 0.5)

	for _, x := range xs {
		require.NoError(t, q.Tell(x, x*x))
	}

	assert.False(t, math.IsInf(q.Loss(), 1))
	assert.InDelta(t, 1.0/3, q.Integral(), 1e-14)
}

func TestIntegratorLearner_RemoveUnfinished(t *testing.T) {
	q := newTestIntegrator(t, 0, 1, 1e-10)

	first, _ := q.Ask(5)
	q.RemoveUnfinished()

	again, _ := q.Ask(5)
	assert.Equal(t, first, again)

	assert.ErrorIs(t, q.Tell(2, 0), adaptive.ErrOutOfBounds)
}

func TestIntegratorLearner_Replay(t *testing.T) {
	original := newTestIntegrator(t, 0, 1, 1e-12)
	integrate(t, original, math.Sqrt, 1, 150)

	replayed := newTestIntegrator(t, 0, 1, 1e-12)
	for _, s := range original.Samples() {
		require.NoError(t, replayed.Tell(s.X, s.Y))
	}

	assert.Equal(t, original.NPoints(), replayed.NPoints())
	assert.InDelta(t, original.Loss(), replayed.Loss(), 1e-15)
	assert.InDelta(t, original.Integral(), replayed.Integral(), 1e-15)
	assert.Equal(t, len(original.Intervals()), len(replayed.Intervals()))
}
