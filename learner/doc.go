// Package learner implements the adaptive sampling models behind the
// adaptive.Learner contract.
//
// Models:
//   - Learner1D: bisects the interval with the highest loss
//   - Learner2D: refines a Delaunay triangulation of a rectangle
//   - AverageLearner: estimates the mean of a stochastic function
//   - IntegratorLearner: adaptive Gauss-Kronrod quadrature
//   - BalancingLearner: shares points between several learners
//   - DataSaver: keeps full outputs while a wrapped learner sees a scalar.
//
// Every model keeps a loss per region in an indexed priority queue and
// updates only the regions touched by a new point. Ask marks the returned
// inputs pending so they are never handed out twice; Tell and TellFailed
// resolve them.
//
// Usage example:
//
//	l, err := learner.NewLearner1D(learner.DefaultLearner1DConfig(
//	    adaptive.Bounds[float64]{Min: -1, Max: 1},
//	))
//	if err != nil {
//	    return err
//	}
//
//	for l.Loss() > 0.01 {
//	    xs, _ := l.Ask(1)
//	    if len(xs) == 0 {
//	        break
//	    }
//
//	    _ = l.Tell(xs[0], math.Tanh(20*xs[0]))
//	}
package learner
