package learner

import "math"

//////
// Loss functions for one dimensional interval learners.
// Each function scores one interval from its local neighbourhood. Higher
// scores mean the interval is refined sooner.
//////

// Interval is the scaled neighbourhood of one interval of a Learner1D.
//
// Coordinates are scaled so the domain is [0, 1] on the x axis and the
// observed output range is 1 on the y axis.
//
// Fields:
//   - X, Y: Up to four consecutive points. Index 1 and 2 are the interval's
//     endpoints; index 0 is the left neighbour, index 3 the right neighbour
//   - HasLeft, HasRight: Whether the neighbours at index 0 and 3 exist.
type Interval struct {
	X [4]float64
	Y [4]float64

	HasLeft  bool
	HasRight bool
}

// Loss1D scores one interval.
//
// Implementation notes for custom loss functions:
//   - Must return a non-negative, finite value
//   - Must only depend on the given neighbourhood
//   - Should be deterministic.
type Loss1D func(iv Interval) float64

// UniformLoss scores an interval by its width alone.
//
// How it works:
//   - Ignores the function values entirely
//   - Produces an evenly spaced grid, refined breadth first
//
// When to use:
//   - As a baseline, or for functions known to be featureless.
func UniformLoss(iv Interval) float64 {
	return iv.X[2] - iv.X[1]
}

// EuclideanLoss scores an interval by the length of the segment joining its
// endpoints.
//
// How it works:
//   - Long segments are either wide or steep, both get refined
//   - Converges on the arc length of the graph, not on its curvature
//
// When to use:
//   - Functions with steps, where curvature estimates are unreliable.
func EuclideanLoss(iv Interval) float64 {
	return math.Hypot(iv.X[2]-iv.X[1], iv.Y[2]-iv.Y[1])
}

// CurvatureLoss returns a loss based on the local second difference of the
// function.
//
// How it works:
//   - Forms the triangles (left neighbour, start, end) and (start, end, right
//     neighbour)
//   - The area of such a triangle is half the second difference times the
//     spacing, i.e. the gap between the function and its linear interpolant
//   - Averages the available areas and adds resolution * width^2 so that
//     straight stretches keep being refined slowly
//   - Falls back to EuclideanLoss when the interval has no neighbour yet
//
// Parameters:
//   - areaFactor: Weight of the curvature term
//   - resolutionFactor: Weight of the width term
//
// Example:
//
//	cfg := DefaultLearner1DConfig(adaptive.Bounds[float64]{Min: -1, Max: 1})
//	cfg.Loss = CurvatureLoss(1, 0.05) // refine flat stretches more eagerly
func CurvatureLoss(areaFactor, resolutionFactor float64) Loss1D {
	return func(iv Interval) float64 {
		if !iv.HasLeft && !iv.HasRight {
			return EuclideanLoss(iv)
		}

		var (
			area float64
			n    float64
		)

		if iv.HasLeft {
			area += triangleArea(iv.X[0], iv.Y[0], iv.X[1], iv.Y[1], iv.X[2], iv.Y[2])
			n++
		}

		if iv.HasRight {
			area += triangleArea(iv.X[1], iv.Y[1], iv.X[2], iv.Y[2], iv.X[3], iv.Y[3])
			n++
		}

		dx := iv.X[2] - iv.X[1]

		return areaFactor*area/n + resolutionFactor*dx*dx
	}
}

// DefaultLoss1D is the loss used when a Learner1DConfig does not set one.
var DefaultLoss1D = CurvatureLoss(1, 0.02)

//////
// Helper functions.
//////

// triangleArea returns the area of the triangle with the given corners.
func triangleArea(x0, y0, x1, y1, x2, y2 float64) float64 {
	return math.Abs((x1-x0)*(y2-y0)-(x2-x0)*(y1-y0)) / 2
}
