// Package adaptive chooses where to sample an expensive black-box function so
// that a target accuracy, or a point budget, is reached with as few
// evaluations as possible, and evaluates those points concurrently.
//
// # Features
//
// The module is split in four packages:
//
//   - adaptive: The Learner contract, samples, bounds and sentinel errors
//   - learner: The sampling models. Learner1D refines intervals,
//     Learner2D refines a Delaunay triangulation, AverageLearner estimates
//     the mean of a noisy function, IntegratorLearner computes an integral
//     with adaptive Gauss-Kronrod quadrature and BalancingLearner splits a
//     budget among several learners. DataSaver keeps rich outputs next to
//     the scalar a learner needs
//   - runner: Drives a learner against a bounded worker pool until a goal
//     on points, loss or wall-clock time is met
//   - checkpoint: Saves the told samples to BadgerDB or a YAML file and
//     replays them to resume a run
//
// # Installation
//
//	go get github.com/thalesfsp/adaptive
//
// # Learners
//
// Every learner keeps a loss per region of its domain (an interval, a
// triangle, a quadrature interval) in a priority queue. Ask hands out the
// inputs that split the regions with the largest loss and marks them
// pending; Tell records an output and updates only the regions around the
// new point. A learner never hands out the same input twice, including
// inputs whose evaluation failed.
//
// Driving a learner by hand:
//
//	l, err := learner.NewLearner1D(learner.DefaultLearner1DConfig(
//		adaptive.Bounds[float64]{Min: -1, Max: 1},
//	))
//	if err != nil {
//		return err
//	}
//
//	for l.Loss() > 0.01 {
//		xs, _ := l.Ask(1)
//		if len(xs) == 0 {
//			break
//		}
//
//		_ = l.Tell(xs[0], math.Tanh(xs[0]/0.05))
//	}
//
// # Running
//
// A Runner asks for as many inputs as it has free workers, evaluates them
// concurrently and tells each result as soon as it arrives:
//
//	cfg := runner.DefaultConfig()
//	cfg.Goal = cfg.Goal.WithLoss(0.01)
//
//	r, err := runner.New[float64, float64](l, f, cfg)
//	if err != nil {
//		return err
//	}
//
//	err = r.Run(ctx)
//
// Runner.Start returns a Task to run in the background. Cancelling it, or
// the context, stops the run and drops the evaluations still in flight; the
// learner keeps every point told so far.
//
// # Thread Safety
//
// All learners guard their state with a sync.RWMutex and are safe for
// concurrent use. A Runner must be the only writer of its learner while it
// runs; reading the learner from other goroutines is fine.
package adaptive
