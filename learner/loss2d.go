package learner

import (
	"math"

	"github.com/thalesfsp/adaptive"
)

//////
// Loss functions for two dimensional triangulation learners.
//////

// Simplex is the scaled neighbourhood of one triangle of a Learner2D.
//
// The domain is scaled to the unit square and the observed output range to
// 1, so losses of different functions are comparable.
//
// Fields:
//   - Vertices: The triangle's corners, counter-clockwise
//   - Values: The scaled outputs at the corners
//   - Neighbors: The vertex opposite each shared edge, up to three
//   - NeighborValues: The scaled outputs at Neighbors.
type Simplex struct {
	Vertices [3]adaptive.Point2
	Values   [3]float64

	Neighbors      []adaptive.Point2
	NeighborValues []float64
}

// Area returns the area of the triangle.
func (s Simplex) Area() float64 {
	return math.Abs(orient(s.Vertices[0], s.Vertices[1], s.Vertices[2])) / 2
}

// Plane returns the value at p of the plane through the three corners.
func (s Simplex) Plane(p adaptive.Point2) float64 {
	a, b, c := s.Vertices[0], s.Vertices[1], s.Vertices[2]

	det := orient(a, b, c)
	if det == 0 {
		return (s.Values[0] + s.Values[1] + s.Values[2]) / 3
	}

	w0 := orient(p, b, c) / det
	w1 := orient(a, p, c) / det
	w2 := orient(a, b, p) / det

	return w0*s.Values[0] + w1*s.Values[1] + w2*s.Values[2]
}

// Loss2D scores one triangle. It must return a non-negative, finite value
// that depends only on the given neighbourhood.
type Loss2D func(s Simplex) float64

// AreaLoss scores a triangle by its area, producing a uniform mesh.
func AreaLoss(s Simplex) float64 {
	return s.Area()
}

// DeviationLoss returns a loss based on how far the neighbouring vertices
// lie from the plane spanned by the triangle.
//
// How it works:
//   - Extends the triangle's linear interpolant to each neighbour vertex
//   - Takes the largest absolute deviation of the neighbour's value
//   - Multiplies by the area, and adds resolution * area^2 so flat regions
//     still get refined slowly
//   - A triangle without neighbours scores its area.
//
// Parameters:
//   - resolutionFactor: Weight of the area term.
func DeviationLoss(resolutionFactor float64) Loss2D {
	return func(s Simplex) float64 {
		area := s.Area()

		if len(s.Neighbors) == 0 {
			return area
		}

		var dev float64
		for i, p := range s.Neighbors {
			dev = math.Max(dev, math.Abs(s.NeighborValues[i]-s.Plane(p)))
		}

		return area*dev + resolutionFactor*area*area
	}
}

// DefaultLoss2D is the loss used when a Learner2DConfig does not set one.
var DefaultLoss2D = DeviationLoss(0.05)
