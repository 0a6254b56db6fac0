package learner

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/adaptive"
)

func newTestAverage(t *testing.T, cfg AverageConfig) *AverageLearner {
	t.Helper()

	a, err := NewAverageLearner(cfg)
	require.NoError(t, err)

	return a
}

func TestNewAverageLearner_Invalid(t *testing.T) {
	_, err := NewAverageLearner(AverageConfig{Atol: 0})
	assert.ErrorIs(t, err, adaptive.ErrInvalidInput)

	_, err = NewAverageLearner(AverageConfig{Atol: 1, Rtol: -1})
	assert.ErrorIs(t, err, adaptive.ErrInvalidInput)
}

func TestAverageLearner_Statistics(t *testing.T) {
	a := newTestAverage(t, DefaultAverageConfig())

	seeds, improvements := a.Ask(3)
	assert.Equal(t, []int{0, 1, 2}, seeds)

	for _, imp := range improvements {
		assert.True(t, math.IsInf(imp, 1))
	}

	assert.True(t, math.IsInf(a.Loss(), 1))
	assert.True(t, math.IsNaN(a.Mean()))

	for i, seed := range seeds {
		require.NoError(t, a.Tell(seed, float64(i+1)))
	}

	assert.Equal(t, 3, a.NPoints())
	assert.InDelta(t, 2.0, a.Mean(), 1e-15)
	assert.InDelta(t, 1.0, a.StdDev(), 1e-15)
	assert.InDelta(t, 1/math.Sqrt(3), a.StandardError(), 1e-15)
	assert.InDelta(t, 1/math.Sqrt(3), a.Loss(), 1e-15)
	assert.InDelta(t, 0.95, a.Confidence(1.959964/math.Sqrt(3)), 1e-5)
}

func TestAverageLearner_RelativeTolerance(t *testing.T) {
	a := newTestAverage(t, AverageConfig{Atol: 1, Rtol: 0.1})

	for seed, y := range []float64{1, 2, 3} {
		require.NoError(t, a.Tell(seed, y))
	}

	se := 1 / math.Sqrt(3)
	assert.InDelta(t, se/(0.1*2), a.Loss(), 1e-12)
}

func TestAverageLearner_Improvements(t *testing.T) {
	a := newTestAverage(t, DefaultAverageConfig())

	for seed, y := range []float64{1, 2, 3} {
		require.NoError(t, a.Tell(seed, y))
	}

	seeds, improvements := a.Ask(3)
	assert.Equal(t, []int{3, 4, 5}, seeds)

	assert.InDelta(t, 1/math.Sqrt(3)-1/math.Sqrt(4), improvements[0], 1e-15)
	assert.Greater(t, improvements[0], improvements[1])
	assert.Greater(t, improvements[1], improvements[2])
}

func TestAverageLearner_PendingAndFailures(t *testing.T) {
	a := newTestAverage(t, DefaultAverageConfig())

	require.NoError(t, a.Tell(1, 5))

	seeds, _ := a.Ask(3)
	assert.Equal(t, []int{0, 2, 3}, seeds, "told seeds are skipped")

	require.NoError(t, a.TellFailed(2))
	assert.ErrorIs(t, a.Tell(3, math.NaN()), adaptive.ErrEvaluation)

	a.RemoveUnfinished()

	seeds, _ = a.Ask(2)
	assert.Equal(t, []int{0, 4}, seeds, "failed seeds are never reused, pending ones are")

	assert.ErrorIs(t, a.Tell(1, 6), adaptive.ErrDuplicateInput)
	assert.Equal(t, 1, a.NPoints())
}

func TestAverageLearner_Converges(t *testing.T) {
	a := newTestAverage(t, AverageConfig{Atol: 0.05})

	for a.Loss() > 1 {
		seeds, _ := a.Ask(4)
		for _, seed := range seeds {
			r := rand.New(rand.NewSource(int64(seed)))
			require.NoError(t, a.Tell(seed, 3+r.NormFloat64()))
		}
	}

	// se <= 0.05 needs about 400 samples of unit variance.
	assert.Greater(t, a.NPoints(), 200)
	assert.InDelta(t, 3.0, a.Mean(), 0.2)
	assert.InDelta(t, 1.0, a.StdDev(), 0.2)
}
