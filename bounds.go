package adaptive

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Bounds defines the closed range of one dimension of a sampling domain.
//
// Type Parameter:
//   - T: The floating point type of the range
//
// Usage:
//
//	// The unit interval.
//	unit := Bounds[float64]{Min: 0, Max: 1}
//
//	// A symmetric range around zero.
//	sym := Bounds[float64]{Min: -1, Max: 1}
//
// Validation:
//   - Min must be strictly less than Max
//   - Both ends must be finite
type Bounds[T constraints.Float] struct {
	// Min is the lower (inclusive) end of the range.
	Min T `json:"min" yaml:"min"`

	// Max is the upper (inclusive) end of the range.
	Max T `json:"max" yaml:"max"`
}

// Validate reports whether the bounds describe a finite, non-empty range.
func (b Bounds[T]) Validate() error {
	lo, hi := float64(b.Min), float64(b.Max)

	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return fmt.Errorf("%w: [%v, %v] is not finite", ErrInvalidBounds, b.Min, b.Max)
	}

	if lo >= hi {
		return fmt.Errorf("%w: min %v must be less than max %v", ErrInvalidBounds, b.Min, b.Max)
	}

	return nil
}

// Width returns Max - Min.
func (b Bounds[T]) Width() T {
	return b.Max - b.Min
}

// Contains reports whether x lies inside the closed range.
func (b Bounds[T]) Contains(x T) bool {
	return x >= b.Min && x <= b.Max
}

// Scale maps x from the range onto [0, 1].
func (b Bounds[T]) Scale(x T) T {
	return (x - b.Min) / b.Width()
}

// Unscale maps u from [0, 1] back onto the range.
func (b Bounds[T]) Unscale(u T) T {
	return b.Min + u*b.Width()
}
