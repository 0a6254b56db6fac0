package adaptive

//////
// Const, vars, types.
//////

// Learner is the contract shared by every adaptive sampling model. A learner
// owns the points evaluated for one function over one domain and decides,
// from its loss table, which inputs should be evaluated next.
//
// Type Parameters:
//   - X: The input type (float64 for intervals, Point2 for triangulations,
//     int seeds for averages, Indexed[X] for balancers)
//   - Y: The output type (float64 for every built-in model; arbitrary for the
//     DataSaver decorator)
//
// Protocol:
//
//	xs, improvements := l.Ask(4)   // xs are now pending
//	for _, x := range xs {
//	    y, err := f(x)
//	    if err != nil {
//	        _ = l.TellFailed(x)     // excluded, never re-offered
//	        continue
//	    }
//	    _ = l.Tell(x, y)
//	}
//
// Implementation notes:
//   - Ask must never return an input that is pending, evaluated or failed
//   - Ask returns fewer than n inputs when the domain cannot be refined further
//   - Improvements are sorted in descending order and expressed in the
//     learner's own loss units
//   - Tell accepts inputs that were never asked (manual injection)
//   - All methods are safe for concurrent use.
type Learner[X comparable, Y any] interface {
	// Ask returns up to n inputs to evaluate next together with the loss
	// improvement each one is expected to bring. Returned inputs are pending.
	Ask(n int) ([]X, []float64)

	// Tell records the output for x and removes it from the pending set.
	Tell(x X, y Y) error

	// TellFailed records that evaluating x failed. The input is excluded from
	// the model and will not be offered again.
	TellFailed(x X) error

	// Loss returns the current total loss.
	Loss() float64

	// RemoveUnfinished drops every pending input without other side effects.
	RemoveUnfinished()

	// NPoints returns the number of successfully evaluated inputs.
	NPoints() int

	// Samples returns every told point in the order it was told. Replaying
	// them on a fresh learner reproduces its state.
	Samples() []Sample[X, Y]
}

// Sample is one told point: an input, its output, and whether the evaluation
// failed. Failed samples carry the zero Y.
type Sample[X comparable, Y any] struct {
	// X is the evaluated input.
	X X `json:"x" yaml:"x"`

	// Y is the evaluation output.
	Y Y `json:"y" yaml:"y"`

	// Failed marks inputs whose evaluation failed.
	Failed bool `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Indexed addresses an input of one child of a balancing learner.
type Indexed[X comparable] struct {
	// Index is the position of the child learner.
	Index int `json:"index" yaml:"index"`

	// X is the child's own input.
	X X `json:"x" yaml:"x"`
}

// Point2 is an input of a two dimensional domain.
type Point2 [2]float64
