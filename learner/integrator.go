package learner

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/thalesfsp/adaptive"
)

//////
// Const, vars, types.
//////

// Gauss-Kronrod 7/15 rule on [-1, 1]. Kronrod abscissae are listed from the
// outside in, the last one being the centre; the Gauss abscissae are every
// other Kronrod abscissa starting from index 1.
var (
	kronrodNodes = [8]float64{
		0.991455371120812639206854697526329,
		0.949107912342758524526189684047851,
		0.864864423359769072789712788640926,
		0.741531185599394439863864773280788,
		0.586087235467691130294144845693013,
		0.405845151377397166906606412076961,
		0.207784955007898467600689403773245,
		0.000000000000000000000000000000000,
	}

	kronrodWeights = [8]float64{
		0.022935322010529224963732008058970,
		0.063092092629978553290700663189204,
		0.104790010322250183839876322541518,
		0.140653259715525918745189590510238,
		0.169004726639267902826583426598550,
		0.190350578064785409913256402421014,
		0.204432940075298892414161999234649,
		0.209482141084727828012999174891714,
	}

	gaussWeights = [4]float64{
		0.129484966168869693270611432679082,
		0.279705391489276667901467771423780,
		0.381830050505118944950369775488975,
		0.417959183673469387755102040816327,
	}
)

const nodesPerInterval = 15

// IntegratorConfig configures an IntegratorLearner.
type IntegratorConfig struct {
	// Bounds is the integration interval.
	Bounds adaptive.Bounds[float64] `json:"bounds" yaml:"bounds"`

	// Tol is the absolute error at which the integral is considered done.
	Tol float64 `json:"tol" yaml:"tol"`

	// MinInterval is the width, as a fraction of the domain, below which an
	// interval is never bisected. Defaults to 1e-10.
	MinInterval float64 `json:"min_interval" yaml:"min_interval"`
}

// DefaultIntegratorConfig returns a configuration with a 1e-8 tolerance.
func DefaultIntegratorConfig(bounds adaptive.Bounds[float64]) IntegratorConfig {
	return IntegratorConfig{
		Bounds:      bounds,
		Tol:         1e-8,
		MinInterval: 1e-10,
	}
}

// quadInterval is one node of the bisection tree.
type quadInterval struct {
	a, b     float64
	parent   int
	children [2]int

	nodes [nodesPerInterval]float64
	known int
	next  int

	// priority orders intervals still collecting nodes.
	priority float64

	complete bool
	leaf     bool
	failed   bool

	kronrod float64
	gauss   float64
	err     float64
}

// IntegratorLearner computes the integral of a scalar function with
// adaptive Gauss-Kronrod (G7/K15) quadrature.
//
// Every interval is evaluated at 15 Kronrod nodes; its error estimate is
// |K15 - G7|. The interval with the largest error is bisected; its halves
// replace it once both are fully evaluated. An interval with a failed node
// has an infinite error, so it keeps being bisected around the failure.
//
// Thread safety:
//   - All exported methods are safe for concurrent use.
type IntegratorLearner struct {
	mu sync.RWMutex

	bounds   adaptive.Bounds[float64]
	tol      float64
	minWidth float64

	store *pointStore[float64, float64]

	intervals map[int]*quadInterval
	nextID    int
	owners    map[float64][]int

	// building queues intervals with nodes left to ask, by priority.
	building *lossQueue[int]

	// splittable queues leaf intervals by error.
	splittable *lossQueue[int]
}

//////
// Exported functionalities.
//////

// Ask returns up to n quadrature nodes, best first. A node's improvement
// is the error share of the interval it belongs to: the parent's error
// halved, then spread over the 15 nodes.
func (q *IntegratorLearner) Ask(n int) ([]float64, []float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 {
		return nil, nil
	}

	xs := make([]float64, 0, n)
	improvements := make([]float64, 0, n)

	for len(xs) < n {
		bID, bPriority, bOK := q.building.peek()
		sID, sErr, sOK := q.splittable.peek()

		if sOK && (!bOK || sErr/2 > bPriority) {
			q.split(sID)

			continue
		}

		if !bOK {
			break
		}

		x, ok := q.nextNode(bID)
		if !ok {
			q.building.remove(bID)

			continue
		}

		q.store.markPending(x)

		xs = append(xs, x)
		improvements = append(improvements, bPriority/nodesPerInterval)
	}

	return xs, improvements
}

// Tell records f(x) = y. A non-finite y is recorded as a failure and
// reported as ErrEvaluation.
func (q *IntegratorLearner) Tell(x, y float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.validate(x); err != nil {
		return err
	}

	if math.IsNaN(y) || math.IsInf(y, 0) {
		if err := q.tellFailed(x); err != nil {
			return err
		}

		return fmt.Errorf("%w: non-finite output %v at %v", adaptive.ErrEvaluation, y, x)
	}

	duplicate, err := q.store.checkTell(x, y)
	if duplicate {
		return err
	}

	wasFailed := q.store.isFailed(x)

	q.store.record(x, y)

	if !wasFailed {
		q.nodeKnown(x)
	}

	return nil
}

// TellFailed records that evaluating x failed.
func (q *IntegratorLearner) TellFailed(x float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.validate(x); err != nil {
		return err
	}

	return q.tellFailed(x)
}

// Loss returns the summed error estimate of the leaf intervals, +Inf until
// the whole domain has been evaluated once.
func (q *IntegratorLearner) Loss() float64 {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.loss()
}

// Done reports whether the error estimate is within the tolerance.
func (q *IntegratorLearner) Done() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.loss() <= q.tol
}

// Integral returns the current estimate, NaN until the whole domain has
// been evaluated once.
func (q *IntegratorLearner) Integral() float64 {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.intervals[0].complete {
		return math.NaN()
	}

	var total float64
	for _, id := range q.leaves() {
		total += q.intervals[id].kronrod
	}

	return total
}

// RemoveUnfinished forgets every pending node. Incomplete intervals ask
// for them again.
func (q *IntegratorLearner) RemoveUnfinished() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.store.clearPending()

	for _, id := range q.sortedIDs() {
		iv := q.intervals[id]
		if !iv.complete {
			iv.next = 0
			q.building.set(id, iv.priority)
		}
	}
}

// NPoints returns the number of evaluated inputs.
func (q *IntegratorLearner) NPoints() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.store.data)
}

// Samples returns every told point in tell order.
func (q *IntegratorLearner) Samples() []adaptive.Sample[float64, float64] {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.samples()
}

// Intervals returns the leaf intervals, left to right, with their error
// estimates as losses.
func (q *IntegratorLearner) Intervals() []IntervalLoss {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ids := q.leaves()
	out := make([]IntervalLoss, 0, len(ids))

	for _, id := range ids {
		iv := q.intervals[id]
		out = append(out, IntervalLoss{Left: iv.a, Right: iv.b, Loss: iv.err})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Left < out[j].Left })

	return out
}

//////
// Helper functions.
//////

func (q *IntegratorLearner) validate(x float64) error {
	if math.IsNaN(x) {
		return fmt.Errorf("%w: NaN", adaptive.ErrInvalidInput)
	}

	if !q.bounds.Contains(x) {
		return fmt.Errorf("%w: %v not in [%v, %v]", adaptive.ErrOutOfBounds, x, q.bounds.Min, q.bounds.Max)
	}

	return nil
}

func (q *IntegratorLearner) tellFailed(x float64) error {
	duplicate, err := q.store.checkFailed(x)
	if duplicate {
		return err
	}

	q.store.recordFailed(x)
	q.nodeKnown(x)

	return nil
}

func (q *IntegratorLearner) loss() float64 {
	if !q.intervals[0].complete {
		return math.Inf(1)
	}

	var total float64
	for _, id := range q.leaves() {
		total += q.intervals[id].err
	}

	return total
}

func (q *IntegratorLearner) leaves() []int {
	var out []int

	for _, id := range q.sortedIDs() {
		if q.intervals[id].leaf {
			out = append(out, id)
		}
	}

	return out
}

func (q *IntegratorLearner) sortedIDs() []int {
	ids := make([]int, 0, len(q.intervals))
	for id := range q.intervals {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	return ids
}

// isKnown reports whether x has a value or a recorded failure.
func (q *IntegratorLearner) isKnown(x float64) bool {
	if _, ok := q.store.data[x]; ok {
		return true
	}

	return q.store.isFailed(x)
}

// newInterval creates an interval and counts the nodes already known.
func (q *IntegratorLearner) newInterval(a, b float64, parent int, priority float64) {
	id := q.nextID
	q.nextID++

	iv := &quadInterval{
		a:        a,
		b:        b,
		parent:   parent,
		children: [2]int{-1, -1},
		priority: priority,
	}

	center, half := a+(b-a)/2, (b-a)/2

	for j := 0; j < 7; j++ {
		iv.nodes[j] = center - half*kronrodNodes[j]
		iv.nodes[7+j] = center + half*kronrodNodes[j]
	}

	iv.nodes[14] = center

	q.intervals[id] = iv

	for _, x := range iv.nodes {
		q.owners[x] = append(q.owners[x], id)

		if q.isKnown(x) {
			iv.known++
		}
	}

	if iv.known >= nodesPerInterval {
		q.complete(id)
	} else {
		q.building.set(id, priority)
	}
}

// nextNode returns the next node of interval id that is not yet known or
// pending.
func (q *IntegratorLearner) nextNode(id int) (float64, bool) {
	iv := q.intervals[id]

	for iv.next < nodesPerInterval {
		x := iv.nodes[iv.next]
		iv.next++

		if !q.store.known(x) {
			return x, true
		}
	}

	return 0, false
}

// nodeKnown counts x towards every interval using it. A value that belongs
// to no interval may complete a bisection that was never asked for, as
// happens when replaying samples.
func (q *IntegratorLearner) nodeKnown(x float64) {
	owners := q.owners[x]
	completed := false

	for _, id := range owners {
		iv := q.intervals[id]

		iv.known++
		if iv.known >= nodesPerInterval && !iv.complete {
			q.complete(id)

			completed = true
		}
	}

	if len(owners) == 0 || completed {
		q.settle()
	}
}

// complete computes the quadrature of a fully evaluated interval and
// commits it, together with its sibling, once both are complete.
func (q *IntegratorLearner) complete(id int) {
	iv := q.intervals[id]
	iv.complete = true

	q.building.remove(id)

	half := (iv.b - iv.a) / 2

	var kronrod, gauss float64

	for j := 0; j < 8; j++ {
		var sum float64

		if j < 7 {
			sum = q.value(iv, iv.nodes[j]) + q.value(iv, iv.nodes[7+j])
		} else {
			sum = q.value(iv, iv.nodes[14])
		}

		kronrod += kronrodWeights[j] * sum

		if j%2 == 1 {
			gauss += gaussWeights[j/2] * sum
		}
	}

	iv.kronrod = half * kronrod
	iv.gauss = half * gauss
	iv.err = math.Abs(iv.kronrod - iv.gauss)

	if iv.failed {
		iv.err = math.Inf(1)
	}

	if iv.parent < 0 {
		q.commit(id)

		return
	}

	parent := q.intervals[iv.parent]

	for _, c := range parent.children {
		child, ok := q.intervals[c]
		if !ok || !child.complete {
			return
		}
	}

	parent.leaf = false
	q.splittable.remove(iv.parent)

	for _, c := range parent.children {
		q.commit(c)
	}
}

// value returns the output at a node, marking the interval failed when the
// node failed.
func (q *IntegratorLearner) value(iv *quadInterval, x float64) float64 {
	if y, ok := q.store.data[x]; ok {
		return y
	}

	iv.failed = true

	return 0
}

func (q *IntegratorLearner) commit(id int) {
	iv := q.intervals[id]
	iv.leaf = true

	if (iv.b-iv.a)/2 >= q.minWidth && (iv.err > 0 || math.IsInf(iv.err, 1)) {
		q.splittable.set(id, iv.err)
	}
}

// split bisects leaf id. The halves replace it once both are complete.
func (q *IntegratorLearner) split(id int) {
	q.splittable.remove(id)

	iv := q.intervals[id]
	mid := iv.a + (iv.b-iv.a)/2
	priority := iv.err / 2

	// Ids are reserved up front so a half that completes on creation can
	// find its sibling.
	iv.children = [2]int{q.nextID, q.nextID + 1}

	q.newInterval(iv.a, mid, id, priority)
	q.newInterval(mid, iv.b, id, priority)
}

// settle bisects every leaf whose halves are already fully evaluated.
func (q *IntegratorLearner) settle() {
	queue := q.leaves()

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		iv := q.intervals[id]
		if !iv.leaf || iv.children[0] >= 0 {
			continue
		}

		if _, ok := q.splittable.get(id); !ok {
			continue
		}

		mid := iv.a + (iv.b-iv.a)/2
		if !q.halfKnown(iv.a, mid) || !q.halfKnown(mid, iv.b) {
			continue
		}

		q.split(id)

		queue = append(queue, iv.children[0], iv.children[1])
	}
}

// halfKnown reports whether every node of [a, b] is known.
func (q *IntegratorLearner) halfKnown(a, b float64) bool {
	center, half := a+(b-a)/2, (b-a)/2

	if !q.isKnown(center) {
		return false
	}

	for j := 0; j < 7; j++ {
		if !q.isKnown(center-half*kronrodNodes[j]) || !q.isKnown(center+half*kronrodNodes[j]) {
			return false
		}
	}

	return true
}

//////
// Factory.
//////

// NewIntegratorLearner creates a learner for the configured interval.
//
// Returns:
//   - error: ErrInvalidBounds for an empty or non-finite interval, or
//     ErrInvalidInput if Tol is not positive.
func NewIntegratorLearner(cfg IntegratorConfig) (*IntegratorLearner, error) {
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}

	if !(cfg.Tol > 0) {
		return nil, fmt.Errorf("%w: tol must be positive, got %v", adaptive.ErrInvalidInput, cfg.Tol)
	}

	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 1e-10
	}

	q := &IntegratorLearner{
		bounds:     cfg.Bounds,
		tol:        cfg.Tol,
		minWidth:   cfg.MinInterval * cfg.Bounds.Width(),
		store:      newPointStore[float64, float64](),
		intervals:  make(map[int]*quadInterval),
		owners:     make(map[float64][]int),
		building:   newLossQueue[int](),
		splittable: newLossQueue[int](),
	}

	q.newInterval(cfg.Bounds.Min, cfg.Bounds.Max, -1, math.Inf(1))

	return q, nil
}

var _ adaptive.Learner[float64, float64] = (*IntegratorLearner)(nil)
