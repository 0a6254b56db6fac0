package checkpoint_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/adaptive"
	"github.com/thalesfsp/adaptive/checkpoint"
	"github.com/thalesfsp/adaptive/learner"
	"github.com/thalesfsp/adaptive/runner"
)

func TestRunner_ResumeFromBadger(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	bounds := adaptive.Bounds[float64]{Min: -1, Max: 1}
	fn := func(_ context.Context, x float64) (float64, error) {
		return math.Tanh(x / 0.1), nil
	}

	cfg := runner.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.Goal.Points = 15
	cfg.Checkpoint.EveryPoints = 4

	run := func() (*learner.Learner1D, int) {
		store, err := checkpoint.OpenBadger[float64, float64](checkpoint.BadgerConfig{Path: dir, Key: "tanh"})
		require.NoError(t, err)

		defer store.Close()

		l, err := learner.NewLearner1D(learner.DefaultLearner1DConfig(bounds))
		require.NoError(t, err)

		restored, err := checkpoint.Restore[float64, float64](ctx, l, store)
		require.NoError(t, err)

		r, err := runner.New[float64, float64](l, fn, cfg,
			runner.WithExecutor[float64, float64](runner.NewInlineExecutor(1)),
			runner.WithCheckpoint[float64, float64](store),
		)
		require.NoError(t, err)
		require.NoError(t, r.Run(ctx))

		return l, restored
	}

	first, restored := run()
	assert.Equal(t, 0, restored)
	assert.Equal(t, 15, first.NPoints())

	cfg.Goal.Points = 30

	second, restored := run()
	assert.Equal(t, 15, restored)
	assert.Equal(t, 30, second.NPoints())
	assert.Equal(t, first.Samples(), second.Samples()[:15])
}
