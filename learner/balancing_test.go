package learner

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/adaptive"
)

func newTestBalancer(t *testing.T, bounds ...adaptive.Bounds[float64]) *BalancingLearner[float64, float64] {
	t.Helper()

	children := make([]adaptive.Learner[float64, float64], 0, len(bounds))
	for _, b := range bounds {
		children = append(children, newTestLearner1D(t, b.Min, b.Max))
	}

	bl, err := NewBalancingLearner(children, DefaultBalancingConfig())
	require.NoError(t, err)

	return bl
}

func TestNewBalancingLearner_Invalid(t *testing.T) {
	_, err := NewBalancingLearner[float64, float64](nil, DefaultBalancingConfig())
	assert.ErrorIs(t, err, adaptive.ErrInvalidInput)

	children := []adaptive.Learner[float64, float64]{newTestLearner1D(t, 0, 1)}

	_, err = NewBalancingLearner(children, BalancingConfig{Scales: []float64{1, 2}})
	assert.ErrorIs(t, err, adaptive.ErrInvalidInput)

	_, err = NewBalancingLearner(children, BalancingConfig{Scales: []float64{0}})
	assert.ErrorIs(t, err, adaptive.ErrInvalidInput)

	_, err = NewBalancingLearner(children, BalancingConfig{Reduction: "median"})
	assert.ErrorIs(t, err, adaptive.ErrInvalidInput)
}

func TestBalancingLearner_TiesGoToFewerPendingThenLowerIndex(t *testing.T) {
	b := newTestBalancer(t, adaptive.Bounds[float64]{Min: 0, Max: 1}, adaptive.Bounds[float64]{Min: 0, Max: 10})

	xs, improvements := b.Ask(4)
	assert.Equal(t, []adaptive.Indexed[float64]{
		{Index: 0, X: 0},
		{Index: 1, X: 0},
		{Index: 0, X: 1},
		{Index: 1, X: 10},
	}, xs)

	for _, imp := range improvements {
		assert.True(t, math.IsInf(imp, 1))
	}
}

func TestBalancingLearner_Routing(t *testing.T) {
	b := newTestBalancer(t, adaptive.Bounds[float64]{Min: 0, Max: 1}, adaptive.Bounds[float64]{Min: 0, Max: 10})

	require.NoError(t, b.Tell(adaptive.Indexed[float64]{Index: 1, X: 4}, 2))
	assert.ErrorIs(t, b.Tell(adaptive.Indexed[float64]{Index: 0, X: 0.5}, math.NaN()), adaptive.ErrEvaluation)
	require.NoError(t, b.TellFailed(adaptive.Indexed[float64]{Index: 0, X: 0.25}))
	assert.ErrorIs(t, b.Tell(adaptive.Indexed[float64]{Index: 2, X: 0}, 1), adaptive.ErrInvalidInput)
	assert.ErrorIs(t, b.Tell(adaptive.Indexed[float64]{Index: 1, X: 11}, 1), adaptive.ErrOutOfBounds)

	children := b.Children()
	assert.Zero(t, children[0].NPoints())
	assert.Equal(t, 1, children[1].NPoints())
	assert.Equal(t, 1, b.NPoints())

	assert.Equal(t, []adaptive.Sample[adaptive.Indexed[float64], float64]{
		{X: adaptive.Indexed[float64]{Index: 1, X: 4}, Y: 2},
		{X: adaptive.Indexed[float64]{Index: 0, X: 0.5}, Failed: true},
		{X: adaptive.Indexed[float64]{Index: 0, X: 0.25}, Failed: true},
	}, b.Samples())

	// Repeated tells the children ignore leave the log alone.
	require.NoError(t, b.Tell(adaptive.Indexed[float64]{Index: 1, X: 4}, 2))
	require.NoError(t, b.TellFailed(adaptive.Indexed[float64]{Index: 0, X: 0.25}))
	assert.ErrorIs(t, b.Tell(adaptive.Indexed[float64]{Index: 0, X: 0.5}, math.NaN()), adaptive.ErrEvaluation)
	assert.ErrorIs(t, b.Tell(adaptive.Indexed[float64]{Index: 1, X: 4}, 3), adaptive.ErrDuplicateInput)
	assert.Len(t, b.Samples(), 3)
}

func TestBalancingLearner_FavoursHardestChild(t *testing.T) {
	b := newTestBalancer(t, adaptive.Bounds[float64]{Min: 0, Max: 1}, adaptive.Bounds[float64]{Min: 0, Max: 10})

	f := func(ix adaptive.Indexed[float64]) float64 {
		if ix.Index == 0 {
			return ix.X
		}

		return math.Tanh((ix.X - 5) / 0.1)
	}

	for i := 0; i < 100; i++ {
		xs, _ := b.Ask(2)
		for _, x := range xs {
			require.NoError(t, b.Tell(x, f(x)))
		}
	}

	children := b.Children()
	assert.Greater(t, children[1].NPoints(), children[0].NPoints())
	assert.Equal(t, 200, b.NPoints())
}

func TestBalancingLearner_Reductions(t *testing.T) {
	build := func(cfg BalancingConfig) *BalancingLearner[int, float64] {
		noisy := newTestAverage(t, DefaultAverageConfig())
		flat := newTestAverage(t, DefaultAverageConfig())

		for seed, y := range []float64{1, 2, 3} {
			require.NoError(t, noisy.Tell(seed, y))
		}

		require.NoError(t, flat.Tell(0, 4))
		require.NoError(t, flat.Tell(1, 4))

		b, err := NewBalancingLearner([]adaptive.Learner[int, float64]{noisy, flat}, cfg)
		require.NoError(t, err)

		return b
	}

	se := 1 / math.Sqrt(3)

	assert.InDelta(t, se, build(BalancingConfig{Reduction: ReduceMax}).Loss(), 1e-15)
	assert.InDelta(t, se, build(BalancingConfig{Reduction: ReduceSum}).Loss(), 1e-15)
	assert.InDelta(t, se/2, build(BalancingConfig{Reduction: ReduceMean}).Loss(), 1e-15)
	assert.InDelta(t, se/2, build(BalancingConfig{Scales: []float64{2, 1}}).Loss(), 1e-15)
}

func TestBalancingLearner_RemoveUnfinished(t *testing.T) {
	b := newTestBalancer(t, adaptive.Bounds[float64]{Min: 0, Max: 1}, adaptive.Bounds[float64]{Min: -1, Max: 1})

	first, _ := b.Ask(6)
	b.RemoveUnfinished()

	again, _ := b.Ask(6)
	assert.Equal(t, first, again)
}

func TestProduct(t *testing.T) {
	combos := Product(map[string][]any{
		"b": {"x", "y", "z"},
		"a": {1, 2},
	})

	require.Len(t, combos, 6)
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, combos[0])
	assert.Equal(t, map[string]any{"a": 1, "b": "y"}, combos[1])
	assert.Equal(t, map[string]any{"a": 2, "b": "z"}, combos[5])

	assert.Empty(t, Product(map[string][]any{"a": {1}, "b": {}}))
	assert.Equal(t, []map[string]any{{}}, Product(nil))
}

func TestNewBalancingLearnerFromProduct(t *testing.T) {
	factory := func(p map[string]any) (adaptive.Learner[float64, float64], error) {
		hi, ok := p["hi"].(float64)
		if !ok {
			return nil, errors.New("hi must be a float")
		}

		return NewLearner1D(DefaultLearner1DConfig(adaptive.Bounds[float64]{Min: 0, Max: hi}))
	}

	b, combos, err := NewBalancingLearnerFromProduct(factory, map[string][]any{"hi": {1.0, 2.0, 3.0}}, DefaultBalancingConfig())
	require.NoError(t, err)
	require.Len(t, combos, 3)
	assert.Len(t, b.Children(), 3)

	for i, c := range b.Children() {
		l, ok := c.(*Learner1D)
		require.True(t, ok)
		assert.Equal(t, combos[i]["hi"], l.Bounds().Max)
	}

	_, _, err = NewBalancingLearnerFromProduct(factory, map[string][]any{"hi": {"one"}}, DefaultBalancingConfig())
	assert.Error(t, err)
}
