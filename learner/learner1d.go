package learner

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/thalesfsp/adaptive"
)

//////
// Const, vars, types.
//////

// Learner1DConfig configures a Learner1D.
type Learner1DConfig struct {
	// Bounds is the sampled interval. Both ends are always evaluated first.
	Bounds adaptive.Bounds[float64] `json:"bounds" yaml:"bounds"`

	// Loss scores intervals. Defaults to DefaultLoss1D.
	Loss Loss1D `json:"-" yaml:"-"`

	// MinInterval is the width, as a fraction of the domain, below which an
	// interval is never split. Defaults to 1e-12.
	MinInterval float64 `json:"min_interval" yaml:"min_interval"`
}

// DefaultLearner1DConfig returns a configuration for the given bounds with
// the curvature loss.
func DefaultLearner1DConfig(bounds adaptive.Bounds[float64]) Learner1DConfig {
	return Learner1DConfig{
		Bounds:      bounds,
		Loss:        DefaultLoss1D,
		MinInterval: 1e-12,
	}
}

// IntervalLoss is a read-only view of one interval of a Learner1D.
type IntervalLoss struct {
	Left  float64
	Right float64
	Loss  float64
}

// Learner1D samples a scalar function on a closed interval by repeatedly
// bisecting the interval with the highest loss.
//
// Two structures are maintained:
//   - the real intervals between consecutive evaluated inputs, each with a
//     loss from the configured Loss1D
//   - the sub-intervals between consecutive known inputs (evaluated, pending
//     or failed), queued by loss. A sub-interval inside a real interval gets
//     the real loss scaled by its share of the width, so several points can
//     be handed out before any of them is told.
//
// Failed inputs stay in the second structure only: they are never offered
// again and never used by a loss function.
//
// Thread safety:
//   - All exported methods are safe for concurrent use.
type Learner1D struct {
	mu sync.RWMutex

	bounds   adaptive.Bounds[float64]
	loss     Loss1D
	minWidth float64

	store *pointStore[float64, float64]

	// xs holds the evaluated inputs, sorted.
	xs []float64

	// combined holds evaluated, pending and failed inputs, sorted.
	combined []float64

	// losses maps the left end of each real interval to its loss.
	losses map[float64]float64

	// queue orders the sub-intervals of combined by loss, keyed by left end.
	queue *lossQueue[float64]

	yMin   float64
	yMax   float64
	yScale float64
}

//////
// Exported functionalities.
//////

// Ask returns up to n inputs, best first. The domain bounds come first;
// afterwards each input is the midpoint of the sub-interval with the highest
// loss, and its improvement is that sub-interval's loss.
func (l *Learner1D) Ask(n int) ([]float64, []float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 {
		return nil, nil
	}

	xs := make([]float64, 0, n)
	improvements := make([]float64, 0, n)

	for len(xs) < n {
		if b, ok := l.missingBound(); ok {
			l.addPending(b)

			xs = append(xs, b)
			improvements = append(improvements, math.Inf(1))

			continue
		}

		left, loss, ok := l.queue.peek()
		if !ok {
			break
		}

		right, ok := l.nextCombined(left)
		mid := left + (right-left)/2

		if !ok || mid <= left || mid >= right {
			l.queue.remove(left)

			continue
		}

		l.addPending(mid)

		xs = append(xs, mid)
		improvements = append(improvements, loss)
	}

	return xs, improvements
}

// Tell records f(x) = y. A non-finite y is recorded as a failure and reported
// as ErrEvaluation.
func (l *Learner1D) Tell(x, y float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.validate(x); err != nil {
		return err
	}

	if math.IsNaN(y) || math.IsInf(y, 0) {
		if err := l.tellFailed(x); err != nil {
			return err
		}

		return fmt.Errorf("%w: non-finite output %v at %v", adaptive.ErrEvaluation, y, x)
	}

	duplicate, err := l.store.checkTell(x, y)
	if duplicate {
		return err
	}

	l.store.record(x, y)
	l.insertCombined(x)

	i, _ := slices.BinarySearch(l.xs, x)
	l.xs = slices.Insert(l.xs, i, x)

	if l.updateScale(y) {
		l.recomputeAll()
	} else {
		l.updateAround(i)
	}

	return nil
}

// TellFailed records that evaluating x failed.
func (l *Learner1D) TellFailed(x float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.validate(x); err != nil {
		return err
	}

	return l.tellFailed(x)
}

// Loss returns the sum of the interval losses plus the scaled width of any
// part of the domain not yet covered by evaluated intervals. It is +Inf
// until two inputs are evaluated.
func (l *Learner1D) Loss() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.xs) < 2 {
		return math.Inf(1)
	}

	var total float64
	for j := 0; j < len(l.xs)-1; j++ {
		total += l.losses[l.xs[j]]
	}

	uncovered := (l.xs[0] - l.bounds.Min) + (l.bounds.Max - l.xs[len(l.xs)-1])

	return total + uncovered/l.bounds.Width()
}

// RemoveUnfinished forgets every pending input.
func (l *Learner1D) RemoveUnfinished() {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending := l.store.clearPending()
	sort.Float64s(pending)

	for _, x := range pending {
		l.removeCombined(x)
	}
}

// NPoints returns the number of evaluated inputs.
func (l *Learner1D) NPoints() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.store.data)
}

// Samples returns every told point in tell order.
func (l *Learner1D) Samples() []adaptive.Sample[float64, float64] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.store.samples()
}

// Data returns a copy of the evaluated points.
func (l *Learner1D) Data() map[float64]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.store.snapshot()
}

// Bounds returns the sampled interval.
func (l *Learner1D) Bounds() adaptive.Bounds[float64] {
	return l.bounds
}

// Intervals returns the evaluated intervals and their losses, left to right.
func (l *Learner1D) Intervals() []IntervalLoss {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]IntervalLoss, 0, len(l.xs))
	for j := 0; j < len(l.xs)-1; j++ {
		out = append(out, IntervalLoss{
			Left:  l.xs[j],
			Right: l.xs[j+1],
			Loss:  l.losses[l.xs[j]],
		})
	}

	return out
}

//////
// Helper functions.
//////

func (l *Learner1D) validate(x float64) error {
	if math.IsNaN(x) {
		return fmt.Errorf("%w: NaN", adaptive.ErrInvalidInput)
	}

	if !l.bounds.Contains(x) {
		return fmt.Errorf("%w: %v not in [%v, %v]", adaptive.ErrOutOfBounds, x, l.bounds.Min, l.bounds.Max)
	}

	return nil
}

func (l *Learner1D) tellFailed(x float64) error {
	duplicate, err := l.store.checkFailed(x)
	if duplicate {
		return err
	}

	l.store.recordFailed(x)
	l.insertCombined(x)

	return nil
}

func (l *Learner1D) missingBound() (float64, bool) {
	for _, b := range [2]float64{l.bounds.Min, l.bounds.Max} {
		if !l.store.known(b) {
			return b, true
		}
	}

	return 0, false
}

func (l *Learner1D) addPending(x float64) {
	l.store.markPending(x)
	l.insertCombined(x)
}

func (l *Learner1D) nextCombined(x float64) (float64, bool) {
	i, found := slices.BinarySearch(l.combined, x)
	if !found || i+1 >= len(l.combined) {
		return 0, false
	}

	return l.combined[i+1], true
}

// insertCombined adds x to the known inputs, splitting the sub-interval it
// falls in.
func (l *Learner1D) insertCombined(x float64) {
	i, found := slices.BinarySearch(l.combined, x)
	if found {
		return
	}

	l.combined = slices.Insert(l.combined, i, x)

	if i > 0 {
		l.setSub(l.combined[i-1], x)
	}

	if i+1 < len(l.combined) {
		l.setSub(x, l.combined[i+1])
	}
}

// removeCombined drops x from the known inputs, merging its two
// sub-intervals.
func (l *Learner1D) removeCombined(x float64) {
	i, found := slices.BinarySearch(l.combined, x)
	if !found {
		return
	}

	l.queue.remove(x)
	l.combined = slices.Delete(l.combined, i, i+1)

	switch {
	case i > 0 && i < len(l.combined):
		l.setSub(l.combined[i-1], l.combined[i])
	case i > 0:
		l.queue.remove(l.combined[i-1])
	}
}

// setSub queues the sub-interval [a, b], or drops it when it is too narrow
// to split.
func (l *Learner1D) setSub(a, b float64) {
	mid := a + (b-a)/2
	if b-a < 2*l.minWidth || mid <= a || mid >= b {
		l.queue.remove(a)

		return
	}

	l.queue.set(a, l.subLoss(a, b))
}

// subLoss is the loss of the sub-interval [a, b]: its share of the enclosing
// real interval, or its scaled width when no real interval encloses it.
func (l *Learner1D) subLoss(a, b float64) float64 {
	j, found := slices.BinarySearch(l.xs, a)
	if !found {
		j--
	}

	if j >= 0 && j+1 < len(l.xs) && l.xs[j+1] >= b {
		left, right := l.xs[j], l.xs[j+1]

		return l.losses[left] * (b - a) / (right - left)
	}

	return (b - a) / l.bounds.Width()
}

// updateScale tracks the output range and reports whether it grew enough
// that every loss must be recomputed.
func (l *Learner1D) updateScale(y float64) bool {
	if len(l.xs) == 1 {
		l.yMin, l.yMax = y, y
	} else {
		l.yMin = math.Min(l.yMin, y)
		l.yMax = math.Max(l.yMax, y)
	}

	scale := l.yMax - l.yMin
	if scale > 2*l.yScale {
		l.yScale = scale

		return true
	}

	return false
}

// intervalLoss computes the loss of the real interval starting at xs[j].
func (l *Learner1D) intervalLoss(j int) float64 {
	ys := l.yScale
	if ys == 0 {
		ys = 1
	}

	var iv Interval

	for k := -1; k <= 2; k++ {
		idx := j + k
		if idx < 0 || idx >= len(l.xs) {
			continue
		}

		x := l.xs[idx]
		iv.X[k+1] = l.bounds.Scale(x)
		iv.Y[k+1] = l.store.data[x] / ys
	}

	iv.HasLeft = j-1 >= 0
	iv.HasRight = j+2 < len(l.xs)

	loss := l.loss(iv)
	if math.IsNaN(loss) || loss < 0 {
		return 0
	}

	return loss
}

// updateAround recomputes the intervals whose neighbourhood contains xs[i]
// and refreshes the sub-intervals they enclose.
func (l *Learner1D) updateAround(i int) {
	if len(l.xs) < 2 {
		return
	}

	for j := max(i-2, 0); j <= min(i+1, len(l.xs)-2); j++ {
		l.losses[l.xs[j]] = l.intervalLoss(j)
	}

	l.refreshCombined(l.xs[max(i-2, 0)], l.xs[min(i+2, len(l.xs)-1)])
}

func (l *Learner1D) recomputeAll() {
	l.losses = make(map[float64]float64, len(l.xs))

	for j := 0; j < len(l.xs)-1; j++ {
		l.losses[l.xs[j]] = l.intervalLoss(j)
	}

	for k := 0; k < len(l.combined)-1; k++ {
		l.setSub(l.combined[k], l.combined[k+1])
	}
}

// refreshCombined requeues every sub-interval between known inputs a and b.
func (l *Learner1D) refreshCombined(a, b float64) {
	ia, _ := slices.BinarySearch(l.combined, a)
	ib, _ := slices.BinarySearch(l.combined, b)

	for k := ia; k < ib && k+1 < len(l.combined); k++ {
		l.setSub(l.combined[k], l.combined[k+1])
	}
}

//////
// Factory.
//////

// NewLearner1D creates a learner for the configured interval.
//
// Returns:
//   - *Learner1D: The learner, empty
//   - error: ErrInvalidBounds if the bounds are empty or not finite.
func NewLearner1D(cfg Learner1DConfig) (*Learner1D, error) {
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}

	if cfg.Loss == nil {
		cfg.Loss = DefaultLoss1D
	}

	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 1e-12
	}

	return &Learner1D{
		bounds:   cfg.Bounds,
		loss:     cfg.Loss,
		minWidth: cfg.MinInterval * cfg.Bounds.Width(),
		store:    newPointStore[float64, float64](),
		losses:   make(map[float64]float64),
		queue:    newLossQueue[float64](),
	}, nil
}

var _ adaptive.Learner[float64, float64] = (*Learner1D)(nil)
