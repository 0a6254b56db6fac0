package learner

import (
	"fmt"

	"github.com/thalesfsp/adaptive"
)

//////
// Const, vars, types.
//////

// pointStore holds the evaluated points, the failed inputs and the pending
// inputs of one sampling domain, plus the ordered log of every tell.
//
// Fields:
//   - data: Evaluated inputs and their outputs
//   - failed: Inputs whose evaluation failed
//   - pending: Inputs handed out by Ask and not yet told
//   - log: Every told point, in tell order
//
// Thread safety:
//   - None. The owning learner serialises access with its own mutex.
//
// Invariants:
//   - pending, data and failed are pairwise disjoint
//   - every key of data and failed appears in log.
type pointStore[X comparable, Y comparable] struct {
	data    map[X]Y
	failed  map[X]struct{}
	pending map[X]struct{}
	log     []adaptive.Sample[X, Y]
}

//////
// Methods.
//////

// known reports whether x is pending, evaluated or failed. Known inputs must
// never be handed out again.
func (s *pointStore[X, Y]) known(x X) bool {
	if _, ok := s.pending[x]; ok {
		return true
	}

	if _, ok := s.data[x]; ok {
		return true
	}

	_, ok := s.failed[x]

	return ok
}

func (s *pointStore[X, Y]) isPending(x X) bool {
	_, ok := s.pending[x]

	return ok
}

func (s *pointStore[X, Y]) isFailed(x X) bool {
	_, ok := s.failed[x]

	return ok
}

func (s *pointStore[X, Y]) markPending(x X) {
	s.pending[x] = struct{}{}
}

// unmarkPending removes x from the pending set and reports whether it was
// pending.
func (s *pointStore[X, Y]) unmarkPending(x X) bool {
	_, ok := s.pending[x]
	delete(s.pending, x)

	return ok
}

// checkTell decides what a tell of (x, y) means for the store.
//
// Returns:
//   - duplicate: x already carries exactly y, the tell is a no-op
//   - error: ErrDuplicateInput if x already carries a different output.
func (s *pointStore[X, Y]) checkTell(x X, y Y) (duplicate bool, err error) {
	old, ok := s.data[x]
	if !ok {
		return false, nil
	}

	if old == y {
		return true, nil
	}

	return true, fmt.Errorf("%w: %v already told as %v, got %v", adaptive.ErrDuplicateInput, x, old, y)
}

// checkFailed decides what a failure report for x means for the store.
func (s *pointStore[X, Y]) checkFailed(x X) (duplicate bool, err error) {
	if _, ok := s.failed[x]; ok {
		return true, nil
	}

	if old, ok := s.data[x]; ok {
		return true, fmt.Errorf("%w: %v already told as %v, got a failure", adaptive.ErrDuplicateInput, x, old)
	}

	return false, nil
}

// record stores an evaluated point. A previously failed input is upgraded.
func (s *pointStore[X, Y]) record(x X, y Y) {
	delete(s.pending, x)
	delete(s.failed, x)

	s.data[x] = y
	s.log = append(s.log, adaptive.Sample[X, Y]{X: x, Y: y})
}

// recordFailed stores a failed input.
func (s *pointStore[X, Y]) recordFailed(x X) {
	delete(s.pending, x)

	s.failed[x] = struct{}{}
	s.log = append(s.log, adaptive.Sample[X, Y]{X: x, Failed: true})
}

// undo reverts the latest tell of x, restoring whether it was pending or
// failed before.
func (s *pointStore[X, Y]) undo(x X, pending, failed bool) {
	if n := len(s.log); n > 0 && s.log[n-1].X == x {
		s.log = s.log[:n-1]
	}

	delete(s.data, x)
	delete(s.failed, x)

	if failed {
		s.failed[x] = struct{}{}
	}

	if pending {
		s.pending[x] = struct{}{}
	}
}

// clearPending empties the pending set and returns what it held.
func (s *pointStore[X, Y]) clearPending() []X {
	xs := make([]X, 0, len(s.pending))
	for x := range s.pending {
		xs = append(xs, x)
	}

	s.pending = make(map[X]struct{})

	return xs
}

// samples returns a copy of the tell log.
func (s *pointStore[X, Y]) samples() []adaptive.Sample[X, Y] {
	out := make([]adaptive.Sample[X, Y], len(s.log))
	copy(out, s.log)

	return out
}

// snapshot returns a copy of the evaluated data.
func (s *pointStore[X, Y]) snapshot() map[X]Y {
	out := make(map[X]Y, len(s.data))
	for x, y := range s.data {
		out[x] = y
	}

	return out
}

// tellLog is the tell log of a learner that delegates to others, which
// decide what a tell means. Only tells that change the state of an input
// are logged, so a duplicate tell the delegate ignored leaves no entry. The
// zero value is ready to use.
type tellLog[X comparable, Y any] struct {
	// evaluated is true for evaluated inputs, false for failed ones.
	evaluated map[X]bool
	log       []adaptive.Sample[X, Y]
}

// told logs an accepted output for x.
func (t *tellLog[X, Y]) told(x X, y Y) {
	if t.evaluated[x] {
		return
	}

	t.set(x, true)
	t.log = append(t.log, adaptive.Sample[X, Y]{X: x, Y: y})
}

// failed logs an accepted failure for x.
func (t *tellLog[X, Y]) failed(x X) {
	if _, ok := t.evaluated[x]; ok {
		return
	}

	t.set(x, false)
	t.log = append(t.log, adaptive.Sample[X, Y]{X: x, Failed: true})
}

func (t *tellLog[X, Y]) set(x X, evaluated bool) {
	if t.evaluated == nil {
		t.evaluated = make(map[X]bool)
	}

	t.evaluated[x] = evaluated
}

// samples returns a copy of the log.
func (t *tellLog[X, Y]) samples() []adaptive.Sample[X, Y] {
	out := make([]adaptive.Sample[X, Y], len(t.log))
	copy(out, t.log)

	return out
}

//////
// Factory.
//////

// newPointStore creates an empty store.
func newPointStore[X comparable, Y comparable]() *pointStore[X, Y] {
	return &pointStore[X, Y]{
		data:    make(map[X]Y),
		failed:  make(map[X]struct{}),
		pending: make(map[X]struct{}),
	}
}
