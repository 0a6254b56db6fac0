package learner

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/thalesfsp/adaptive"
)

//////
// Const, vars, types.
//////

// Reduction combines the normalised child losses of a BalancingLearner.
type Reduction string

const (
	// ReduceMax reports the worst child.
	ReduceMax Reduction = "max"

	// ReduceSum reports the total over children.
	ReduceSum Reduction = "sum"

	// ReduceMean reports the average over children.
	ReduceMean Reduction = "mean"
)

// BalancingConfig configures a BalancingLearner.
type BalancingConfig struct {
	// Reduction combines child losses. Defaults to ReduceMax.
	Reduction Reduction `json:"reduction" yaml:"reduction"`

	// Scales divides each child's loss before comparing children. Empty
	// means 1 for every child.
	Scales []float64 `json:"scales,omitempty" yaml:"scales,omitempty"`
}

// DefaultBalancingConfig returns the max reduction with unit scales.
func DefaultBalancingConfig() BalancingConfig {
	return BalancingConfig{Reduction: ReduceMax}
}

// BalancingLearner shares one evaluation budget between several learners of
// the same input and output types.
//
// Each point is requested from the child with the highest projected loss:
// its loss minus the improvements promised by its pending points, divided
// by its scale. Ties go to the child with fewer pending points, then to the
// lower index. Inputs are tagged with the child's index.
//
// Thread safety:
//   - All exported methods are safe for concurrent use, provided the
//     children are only driven through the balancer.
type BalancingLearner[X comparable, Y any] struct {
	mu sync.RWMutex

	children  []adaptive.Learner[X, Y]
	scales    []float64
	reduction Reduction

	// pending maps every outstanding input to the improvement it promised.
	pending map[adaptive.Indexed[X]]float64
	counts  []int

	log tellLog[adaptive.Indexed[X], Y]
}

//////
// Exported functionalities.
//////

// Ask returns up to n inputs pulled one at a time from the child with the
// highest projected loss. Each improvement is that projected loss at the
// time the input was chosen.
func (b *BalancingLearner[X, Y]) Ask(n int) ([]adaptive.Indexed[X], []float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 {
		return nil, nil
	}

	xs := make([]adaptive.Indexed[X], 0, n)
	improvements := make([]float64, 0, n)
	exhausted := make([]bool, len(b.children))

	for len(xs) < n {
		i, priority, ok := b.pick(exhausted)
		if !ok {
			break
		}

		points, imps := b.children[i].Ask(1)
		if len(points) == 0 {
			exhausted[i] = true

			continue
		}

		ix := adaptive.Indexed[X]{Index: i, X: points[0]}
		b.pending[ix] = imps[0]
		b.counts[i]++

		xs = append(xs, ix)
		improvements = append(improvements, priority)
	}

	return xs, improvements
}

// Tell forwards y to the child addressed by x.
func (b *BalancingLearner[X, Y]) Tell(x adaptive.Indexed[X], y Y) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(x.Index); err != nil {
		return err
	}

	err := b.children[x.Index].Tell(x.X, y)

	switch {
	case err == nil:
		b.release(x)
		b.log.told(x, y)
	case errors.Is(err, adaptive.ErrEvaluation):
		b.release(x)
		b.log.failed(x)
	}

	return err
}

// TellFailed forwards the failure to the child addressed by x.
func (b *BalancingLearner[X, Y]) TellFailed(x adaptive.Indexed[X]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(x.Index); err != nil {
		return err
	}

	if err := b.children[x.Index].TellFailed(x.X); err != nil {
		return err
	}

	b.release(x)
	b.log.failed(x)

	return nil
}

// Loss reduces the scaled child losses.
func (b *BalancingLearner[X, Y]) Loss() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	losses := make([]float64, len(b.children))
	for i, c := range b.children {
		losses[i] = c.Loss() / b.scales[i]
	}

	switch b.reduction {
	case ReduceSum, ReduceMean:
		var total float64
		for _, l := range losses {
			total += l
		}

		if b.reduction == ReduceMean {
			total /= float64(len(losses))
		}

		return total
	default:
		worst := math.Inf(-1)
		for _, l := range losses {
			worst = math.Max(worst, l)
		}

		return worst
	}
}

// RemoveUnfinished forgets the pending inputs of every child.
func (b *BalancingLearner[X, Y]) RemoveUnfinished() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range b.children {
		c.RemoveUnfinished()
	}

	b.pending = make(map[adaptive.Indexed[X]]float64)
	b.counts = make([]int, len(b.children))
}

// NPoints returns the total number of evaluated inputs over children.
func (b *BalancingLearner[X, Y]) NPoints() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var total int
	for _, c := range b.children {
		total += c.NPoints()
	}

	return total
}

// Samples returns every point told through the balancer, in tell order.
func (b *BalancingLearner[X, Y]) Samples() []adaptive.Sample[adaptive.Indexed[X], Y] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.log.samples()
}

// Children returns the balanced learners, by index.
func (b *BalancingLearner[X, Y]) Children() []adaptive.Learner[X, Y] {
	out := make([]adaptive.Learner[X, Y], len(b.children))
	copy(out, b.children)

	return out
}

//////
// Helper functions.
//////

func (b *BalancingLearner[X, Y]) check(i int) error {
	if i < 0 || i >= len(b.children) {
		return fmt.Errorf("%w: child index %d not in [0, %d)", adaptive.ErrInvalidInput, i, len(b.children))
	}

	return nil
}

// pick returns the child with the highest projected loss.
func (b *BalancingLearner[X, Y]) pick(exhausted []bool) (int, float64, bool) {
	promised := make([]float64, len(b.children))
	for ix, imp := range b.pending {
		promised[ix.Index] += imp
	}

	best, bestPriority := -1, 0.0

	for i, c := range b.children {
		if exhausted[i] {
			continue
		}

		priority := projected(c.Loss(), promised[i]) / b.scales[i]

		switch {
		case best < 0,
			priority > bestPriority,
			priority == bestPriority && b.counts[i] < b.counts[best]:
			best, bestPriority = i, priority
		}
	}

	return best, bestPriority, best >= 0
}

func (b *BalancingLearner[X, Y]) release(x adaptive.Indexed[X]) {
	if _, ok := b.pending[x]; !ok {
		return
	}

	delete(b.pending, x)
	b.counts[x.Index]--
}

// projected is loss minus promised improvements. An unknown loss stays
// infinite whatever was promised.
func projected(loss, promised float64) float64 {
	if math.IsInf(loss, 1) {
		return loss
	}

	p := loss - promised
	if math.IsNaN(p) {
		return math.Inf(-1)
	}

	return p
}

//////
// Factory.
//////

// NewBalancingLearner balances the given children.
//
// Returns:
//   - error: ErrInvalidInput when there are no children, the scales do not
//     match the children, or a scale is not positive.
func NewBalancingLearner[X comparable, Y any](children []adaptive.Learner[X, Y], cfg BalancingConfig) (*BalancingLearner[X, Y], error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: no learners to balance", adaptive.ErrInvalidInput)
	}

	scales := cfg.Scales
	if len(scales) == 0 {
		scales = make([]float64, len(children))
		for i := range scales {
			scales[i] = 1
		}
	}

	if len(scales) != len(children) {
		return nil, fmt.Errorf("%w: %d scales for %d learners", adaptive.ErrInvalidInput, len(scales), len(children))
	}

	for i, s := range scales {
		if !(s > 0) || math.IsInf(s, 1) {
			return nil, fmt.Errorf("%w: scale %d must be positive and finite, got %v", adaptive.ErrInvalidInput, i, s)
		}
	}

	switch cfg.Reduction {
	case "":
		cfg.Reduction = ReduceMax
	case ReduceMax, ReduceSum, ReduceMean:
	default:
		return nil, fmt.Errorf("%w: unknown reduction %q", adaptive.ErrInvalidInput, cfg.Reduction)
	}

	return &BalancingLearner[X, Y]{
		children:  append([]adaptive.Learner[X, Y](nil), children...),
		scales:    append([]float64(nil), scales...),
		reduction: cfg.Reduction,
		pending:   make(map[adaptive.Indexed[X]]float64),
		counts:    make([]int, len(children)),
	}, nil
}

// NewBalancingLearnerFromProduct builds one child per combination of the
// parameter values and balances them.
//
// Returns:
//   - *BalancingLearner: Child i was built from combos[i]
//   - []map[string]any: The combinations, in the order of Product
//   - error: The first factory error, or any NewBalancingLearner error.
//
// Example:
//
//	b, combos, err := NewBalancingLearnerFromProduct(
//	    func(p map[string]any) (adaptive.Learner[float64, float64], error) {
//	        return NewLearner1D(DefaultLearner1DConfig(p["bounds"].(adaptive.Bounds[float64])))
//	    },
//	    map[string][]any{"bounds": {unit, wide}},
//	    DefaultBalancingConfig(),
//	)
func NewBalancingLearnerFromProduct[X comparable, Y any](
	factory func(params map[string]any) (adaptive.Learner[X, Y], error),
	params map[string][]any,
	cfg BalancingConfig,
) (*BalancingLearner[X, Y], []map[string]any, error) {
	combos := Product(params)
	children := make([]adaptive.Learner[X, Y], 0, len(combos))

	for _, combo := range combos {
		child, err := factory(combo)
		if err != nil {
			return nil, nil, fmt.Errorf("building learner for %v: %w", combo, err)
		}

		children = append(children, child)
	}

	b, err := NewBalancingLearner(children, cfg)
	if err != nil {
		return nil, nil, err
	}

	return b, combos, nil
}

// Product returns the cartesian product of the parameter values. Keys are
// iterated in sorted order with the last key varying fastest. An empty
// value list yields no combinations.
func Product(params map[string][]any) []map[string]any {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	combos := []map[string]any{{}}

	for _, k := range keys {
		next := make([]map[string]any, 0, len(combos)*len(params[k]))

		for _, combo := range combos {
			for _, v := range params[k] {
				c := make(map[string]any, len(combo)+1)
				for ck, cv := range combo {
					c[ck] = cv
				}

				c[k] = v
				next = append(next, c)
			}
		}

		combos = next
	}

	return combos
}

var _ adaptive.Learner[adaptive.Indexed[float64], float64] = (*BalancingLearner[float64, float64])(nil)
