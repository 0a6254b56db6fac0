package learner

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/adaptive"
)

func newTestLearner1D(t *testing.T, lo, hi float64) *Learner1D {
	t.Helper()

	l, err := NewLearner1D(DefaultLearner1DConfig(adaptive.Bounds[float64]{Min: lo, Max: hi}))
	require.NoError(t, err)

	return l
}

// drive1D asks one point at a time and tells it immediately.
func drive1D(t *testing.T, l *Learner1D, f func(float64) float64, n int) []float64 {
	t.Helper()

	var losses []float64

	for i := 0; i < n; i++ {
		xs, _ := l.Ask(1)
		require.Len(t, xs, 1)
		require.NoError(t, l.Tell(xs[0], f(xs[0])))

		losses = append(losses, l.Loss())
	}

	return losses
}

func TestNewLearner1D_InvalidBounds(t *testing.T) {
	for _, b := range []adaptive.Bounds[float64]{
		{Min: 1, Max: 1},
		{Min: 2, Max: 1},
		{Min: math.Inf(-1), Max: 1},
		{Min: 0, Max: math.NaN()},
	} {
		_, err := NewLearner1D(DefaultLearner1DConfig(b))
		assert.ErrorIs(t, err, adaptive.ErrInvalidBounds, "bounds %v", b)
	}
}

func TestLearner1D_BoundsThenMidpoint(t *testing.T) {
	l := newTestLearner1D(t, 0, 1)

	xs, improvements := l.Ask(2)
	assert.Equal(t, []float64{0, 1}, xs)
	assert.True(t, math.IsInf(improvements[0], 1))
	assert.True(t, math.IsInf(improvements[1], 1))

	require.NoError(t, l.Tell(0, 0))
	require.NoError(t, l.Tell(1, 0))

	xs, _ = l.Ask(1)
	assert.Equal(t, []float64{0.5}, xs)
}

func TestLearner1D_AskBeforeTell(t *testing.T) {
	l := newTestLearner1D(t, -1, 1)

	xs, improvements := l.Ask(9)
	require.Len(t, xs, 9)

	seen := make(map[float64]bool)
	for _, x := range xs {
		assert.False(t, seen[x], "duplicate %v", x)
		assert.True(t, x >= -1 && x <= 1)

		seen[x] = true
	}

	assert.True(t, sort.SliceIsSorted(improvements, func(i, j int) bool {
		return improvements[i] > improvements[j]
	}), "improvements %v", improvements)
}

func TestLearner1D_Granularity(t *testing.T) {
	cfg := DefaultLearner1DConfig(adaptive.Bounds[float64]{Min: 0, Max: 1})
	cfg.MinInterval = 0.25

	l, err := NewLearner1D(cfg)
	require.NoError(t, err)

	xs, _ := l.Ask(10)
	assert.ElementsMatch(t, []float64{0, 1, 0.5, 0.25, 0.75}, xs)

	xs, _ = l.Ask(1)
	assert.Empty(t, xs)
}

func TestLearner1D_NoDuplicateDispatch(t *testing.T) {
	l := newTestLearner1D(t, -2, 3)
	seen := make(map[float64]bool)

	for round := 0; round < 20; round++ {
		xs, _ := l.Ask(5)

		for _, x := range xs {
			require.False(t, seen[x], "%v asked twice", x)
			seen[x] = true
		}

		// Tell only part of the batch; the rest stays pending.
		for i, x := range xs {
			if i%2 == 0 {
				require.NoError(t, l.Tell(x, math.Sin(x)))
			}
		}
	}
}

func TestLearner1D_PartitionInvariant(t *testing.T) {
	l := newTestLearner1D(t, -1, 2)
	drive1D(t, l, func(x float64) float64 { return x * x * x }, 60)

	intervals := l.Intervals()
	require.Len(t, intervals, 59)

	assert.Equal(t, -1.0, intervals[0].Left)
	assert.Equal(t, 2.0, intervals[len(intervals)-1].Right)

	for i := 1; i < len(intervals); i++ {
		assert.Equal(t, intervals[i-1].Right, intervals[i].Left)
		assert.Less(t, intervals[i].Left, intervals[i].Right)
	}

	for _, iv := range intervals {
		assert.GreaterOrEqual(t, iv.Loss, 0.0)
	}
}

func TestLearner1D_LossMonotone(t *testing.T) {
	l := newTestLearner1D(t, -1, 1)
	losses := drive1D(t, l, func(x float64) float64 { return x * x }, 150)

	// Once three points fix the output scale, refining can only help.
	for i := 3; i < len(losses); i++ {
		assert.LessOrEqual(t, losses[i], losses[i-1]+1e-12, "step %d", i)
	}
}

func TestLearner1D_DenserNearFeature(t *testing.T) {
	l := newTestLearner1D(t, 0, 1)
	drive1D(t, l, func(x float64) float64 { return math.Tanh((x - 0.5) / 0.01) }, 150)

	var near int
	for x := range l.Data() {
		if math.Abs(x-0.5) < 0.1 {
			near++
		}
	}

	// The window covers a fifth of the domain.
	assert.Greater(t, float64(near)/float64(l.NPoints()), 0.3)
}

func TestLearner1D_Tell(t *testing.T) {
	t.Run("duplicate with equal output is a no-op", func(t *testing.T) {
		l := newTestLearner1D(t, 0, 1)

		require.NoError(t, l.Tell(0.3, 1))
		require.NoError(t, l.Tell(0.3, 1))
		assert.Equal(t, 1, l.NPoints())
		assert.Len(t, l.Samples(), 1)
	})

	t.Run("duplicate with conflicting output", func(t *testing.T) {
		l := newTestLearner1D(t, 0, 1)

		require.NoError(t, l.Tell(0.3, 1))
		assert.ErrorIs(t, l.Tell(0.3, 2), adaptive.ErrDuplicateInput)
		assert.Equal(t, 1.0, l.Data()[0.3])
	})

	t.Run("out of bounds", func(t *testing.T) {
		l := newTestLearner1D(t, 0, 1)

		assert.ErrorIs(t, l.Tell(1.5, 0), adaptive.ErrOutOfBounds)
		assert.ErrorIs(t, l.Tell(math.NaN(), 0), adaptive.ErrInvalidInput)
		assert.Zero(t, l.NPoints())
	})

	t.Run("manual injection", func(t *testing.T) {
		l := newTestLearner1D(t, 0, 1)

		require.NoError(t, l.Tell(0.2, 4))

		xs, _ := l.Ask(2)
		assert.Equal(t, []float64{0, 1}, xs)
	})

	t.Run("non-finite output is a failure", func(t *testing.T) {
		l := newTestLearner1D(t, 0, 1)

		assert.ErrorIs(t, l.Tell(0.5, math.Inf(1)), adaptive.ErrEvaluation)
		assert.Zero(t, l.NPoints())

		samples := l.Samples()
		require.Len(t, samples, 1)
		assert.True(t, samples[0].Failed)
	})
}

func TestLearner1D_FailedNeverReoffered(t *testing.T) {
	l := newTestLearner1D(t, 0, 1)

	xs, _ := l.Ask(3)
	require.Equal(t, []float64{0, 1, 0.5}, xs)

	require.NoError(t, l.Tell(0, 0))
	require.NoError(t, l.Tell(1, 1))
	require.NoError(t, l.TellFailed(0.5))

	for i := 0; i < 30; i++ {
		xs, _ := l.Ask(1)
		require.Len(t, xs, 1)
		require.NotEqual(t, 0.5, xs[0])
		require.NoError(t, l.Tell(xs[0], xs[0]))
	}

	_, ok := l.Data()[0.5]
	assert.False(t, ok)
	require.NoError(t, l.Tell(0.5, 0.5))
	assert.Equal(t, 0.5, l.Data()[0.5], "a later success upgrades the failed input")
}

func TestLearner1D_RemoveUnfinished(t *testing.T) {
	l := newTestLearner1D(t, 0, 1)

	require.NoError(t, l.Tell(0, 0))
	require.NoError(t, l.Tell(1, 1))

	first, _ := l.Ask(3)
	before := l.Loss()

	l.RemoveUnfinished()

	assert.Equal(t, before, l.Loss())
	assert.Equal(t, 2, l.NPoints())

	again, _ := l.Ask(3)
	assert.Equal(t, first, again)
}

func TestLearner1D_Replay(t *testing.T) {
	original := newTestLearner1D(t, -1, 1)
	drive1D(t, original, math.Exp, 40)
	require.NoError(t, original.TellFailed(0.123))

	replayed := newTestLearner1D(t, -1, 1)
	for _, s := range original.Samples() {
		if s.Failed {
			require.NoError(t, replayed.TellFailed(s.X))
		} else {
			require.NoError(t, replayed.Tell(s.X, s.Y))
		}
	}

	assert.Equal(t, original.Loss(), replayed.Loss())
	assert.Equal(t, original.Intervals(), replayed.Intervals())
	assert.Equal(t, original.Samples(), replayed.Samples())

	a, _ := original.Ask(5)
	b, _ := replayed.Ask(5)
	assert.Equal(t, a, b)
}

func TestLossFunctions1D(t *testing.T) {
	iv := Interval{
		X:        [4]float64{0, 0.25, 0.5, 0.75},
		Y:        [4]float64{0, 0.5, 0.5, 0},
		HasLeft:  true,
		HasRight: true,
	}

	assert.Equal(t, 0.25, UniformLoss(iv))
	assert.InDelta(t, 0.25, EuclideanLoss(iv), 1e-15)

	// Both neighbour triangles have area 0.0625.
	assert.InDelta(t, 0.0625+0.02*0.0625, DefaultLoss1D(iv), 1e-15)

	iv.HasLeft, iv.HasRight = false, false
	assert.Equal(t, EuclideanLoss(iv), DefaultLoss1D(iv))
}
