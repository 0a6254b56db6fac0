// Package runner drives an adaptive learner against a pool of concurrent
// evaluations until a goal is met.
//
// A Runner owns the loop: it asks the learner for as many inputs as the
// executor has free slots, submits one evaluation per input, tells every
// result back in completion order and checks its goals after each tell.
// Learners stay passive; they never see the executor.
//
// Features:
//   - Goals: point count, loss tolerance, wall-clock duration and a custom
//     predicate, first satisfied wins
//   - Executors: PoolExecutor (bounded goroutines, optional rate limit) and
//     InlineExecutor (synchronous, deterministic)
//   - Failure handling: errors and panics are told as failures and tallied;
//     the run fails once MaxFailures is exceeded
//   - Cancellation: in-flight evaluations are cancelled, pending inputs are
//     forgotten, told points are kept so the run can be resumed
//   - Checkpoints every interval and/or every N told points, plus a final one
//   - Progress updates on an optional non-blocking channel
//   - Prometheus metrics and OpenTelemetry spans per evaluation
//   - A process-wide registry of active and recently finished runs
//
// Usage:
//
//	l, _ := learner.NewLearner1D(learner.DefaultLearner1DConfig(
//	    adaptive.Bounds[float64]{Min: -1, Max: 1},
//	))
//
//	cfg := runner.DefaultConfig()
//	cfg.Goal = cfg.Goal.WithLoss(0.01)
//
//	r, err := runner.New[float64, float64](l, func(ctx context.Context, x float64) (float64, error) {
//	    return math.Tanh(x / 0.05), nil
//	}, cfg)
//	if err != nil {
//	    return err
//	}
//
//	if err := r.Run(ctx); err != nil {
//	    return err
//	}
//
// Thread safety:
//   - A Runner runs once. Status, Info and Failures may be called from any
//     goroutine while it runs.
package runner
