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

// Learner2DConfig configures a Learner2D.
type Learner2DConfig struct {
	// Bounds is the sampled rectangle, x range first. The four corners are
	// always evaluated first.
	Bounds [2]adaptive.Bounds[float64] `json:"bounds" yaml:"bounds"`

	// Loss scores triangles. Defaults to DefaultLoss2D.
	Loss Loss2D `json:"-" yaml:"-"`

	// MinArea is the area, as a fraction of the domain, below which a
	// triangle is never split. Defaults to 1e-10.
	MinArea float64 `json:"min_area" yaml:"min_area"`

	// MaxBadness is the ratio of squared longest edge to area, normalised
	// so an equilateral triangle scores 1, above which a triangle is split
	// at the midpoint of its longest edge instead of at its centroid.
	// Defaults to 1.5.
	MaxBadness float64 `json:"max_badness" yaml:"max_badness"`
}

// DefaultLearner2DConfig returns a configuration for the given rectangle
// with the deviation loss.
func DefaultLearner2DConfig(x, y adaptive.Bounds[float64]) Learner2DConfig {
	return Learner2DConfig{
		Bounds:     [2]adaptive.Bounds[float64]{x, y},
		Loss:       DefaultLoss2D,
		MinArea:    1e-10,
		MaxBadness: 1.5,
	}
}

// TriangleLoss is a read-only view of one triangle of a Learner2D.
type TriangleLoss struct {
	Vertices [3]adaptive.Point2
	Loss     float64
}

// Learner2D samples a scalar function on a rectangle by refining a Delaunay
// triangulation where the loss is highest.
//
// The triangulation holds every told input: evaluated ones with their
// output, failed ones as phantom vertices carrying the interpolated value of
// the surface, so they split their region without adding information and
// are never offered again. It is built once the four corners are told and
// only grows afterwards.
//
// Pending inputs are tracked per triangle. A triangle with pending inputs is
// queued with its loss scaled by the share of its area covered by the
// largest sub-triangle those inputs leave, which is also where the next
// input is placed.
//
// Thread safety:
//   - All exported methods are safe for concurrent use.
type Learner2D struct {
	mu sync.RWMutex

	bounds     [2]adaptive.Bounds[float64]
	loss       Loss2D
	minArea    float64
	maxBadness float64

	store *pointStore[adaptive.Point2, float64]

	// mesh is in unit square coordinates, nil until the corners are told.
	mesh     *triangulation
	values   map[int]float64
	vertexOf map[adaptive.Point2]int

	// losses maps triangle ids to their loss.
	losses map[int]float64

	// pendingIn lists the pending inputs inside each triangle; pendingTri
	// is the reverse index. An input on a shared edge belongs to both.
	pendingIn  map[int][]adaptive.Point2
	pendingTri map[adaptive.Point2][]int

	queue *lossQueue[int]

	yMin   float64
	yMax   float64
	yScale float64
}

//////
// Exported functionalities.
//////

// Ask returns up to n inputs, best first. The corners come first with an
// infinite improvement; afterwards each input refines the triangle with the
// highest loss and its improvement is that triangle's queued loss.
func (l *Learner2D) Ask(n int) ([]adaptive.Point2, []float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 {
		return nil, nil
	}

	points := make([]adaptive.Point2, 0, n)
	improvements := make([]float64, 0, n)

	for len(points) < n {
		if c, ok := l.missingCorner(); ok {
			l.store.markPending(c)

			points = append(points, c)
			improvements = append(improvements, math.Inf(1))

			continue
		}

		if l.mesh == nil {
			p, improvement, ok := l.askVirtual()
			if !ok {
				break
			}

			l.store.markPending(p)

			points = append(points, p)
			improvements = append(improvements, improvement)

			continue
		}

		id, loss, ok := l.queue.peek()
		if !ok {
			break
		}

		p, ok := l.candidate(id)
		if !ok {
			l.queue.remove(id)

			continue
		}

		l.store.markPending(p)
		l.attachPending(p, id)

		points = append(points, p)
		improvements = append(improvements, loss)
	}

	return points, improvements
}

// Tell records f(p) = y. A non-finite y is recorded as a failure and
// reported as ErrEvaluation. An input too close to a known one to be
// triangulated is rejected with ErrInvalidInput and leaves the learner as
// it was.
func (l *Learner2D) Tell(p adaptive.Point2, y float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.validate(p); err != nil {
		return err
	}

	if math.IsNaN(y) || math.IsInf(y, 0) {
		if err := l.tellFailed(p); err != nil {
			return err
		}

		return fmt.Errorf("%w: non-finite output %v at %v", adaptive.ErrEvaluation, y, p)
	}

	duplicate, err := l.store.checkTell(p, y)
	if duplicate {
		return err
	}

	undo := l.undoFor(p)

	l.store.record(p, y)
	l.detachPending(p)

	rescale := l.updateScale(y)

	if err := l.place(p, y, rescale); err != nil {
		l.rollback(p, undo)

		return err
	}

	return nil
}

// TellFailed records that evaluating p failed.
func (l *Learner2D) TellFailed(p adaptive.Point2) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.validate(p); err != nil {
		return err
	}

	return l.tellFailed(p)
}

// Loss returns the sum of the triangle losses. It is +Inf until the
// corners are told.
func (l *Learner2D) Loss() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.mesh == nil {
		return math.Inf(1)
	}

	var total float64
	for _, id := range l.mesh.ids() {
		total += l.losses[id]
	}

	return total
}

// RemoveUnfinished forgets every pending input.
func (l *Learner2D) RemoveUnfinished() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.store.clearPending()

	touched := make(map[int]bool, len(l.pendingIn))
	for id := range l.pendingIn {
		touched[id] = true
	}

	l.pendingIn = make(map[int][]adaptive.Point2)
	l.pendingTri = make(map[adaptive.Point2][]int)

	if l.mesh == nil {
		return
	}

	for _, id := range sortedKeys(touched) {
		if _, ok := l.mesh.tris[id]; ok {
			l.refresh(id)
		}
	}
}

// NPoints returns the number of evaluated inputs.
func (l *Learner2D) NPoints() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.store.data)
}

// Samples returns every told point in tell order.
func (l *Learner2D) Samples() []adaptive.Sample[adaptive.Point2, float64] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.store.samples()
}

// Data returns a copy of the evaluated points.
func (l *Learner2D) Data() map[adaptive.Point2]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.store.snapshot()
}

// Bounds returns the sampled rectangle, x range first.
func (l *Learner2D) Bounds() [2]adaptive.Bounds[float64] {
	return l.bounds
}

// Triangles returns the current triangles in domain coordinates with their
// losses, in creation order.
func (l *Learner2D) Triangles() []TriangleLoss {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.mesh == nil {
		return nil
	}

	ids := l.mesh.ids()
	out := make([]TriangleLoss, 0, len(ids))

	for _, id := range ids {
		a, b, c := l.mesh.corners(id)

		out = append(out, TriangleLoss{
			Vertices: [3]adaptive.Point2{l.unscale(a), l.unscale(b), l.unscale(c)},
			Loss:     l.losses[id],
		})
	}

	return out
}

// Interpolate returns the linear interpolant of the evaluated surface at p.
// It reports false until the corners are told or when p is outside the
// domain.
func (l *Learner2D) Interpolate(p adaptive.Point2) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.mesh == nil || l.validate(p) != nil {
		return 0, false
	}

	return l.interpolate(l.scale(p))
}

//////
// Helper functions.
//////

func (l *Learner2D) validate(p adaptive.Point2) error {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		return fmt.Errorf("%w: NaN coordinate in %v", adaptive.ErrInvalidInput, p)
	}

	if !l.bounds[0].Contains(p[0]) || !l.bounds[1].Contains(p[1]) {
		return fmt.Errorf("%w: %v not in [%v, %v] x [%v, %v]", adaptive.ErrOutOfBounds, p,
			l.bounds[0].Min, l.bounds[0].Max, l.bounds[1].Min, l.bounds[1].Max)
	}

	return nil
}

func (l *Learner2D) tellFailed(p adaptive.Point2) error {
	duplicate, err := l.store.checkFailed(p)
	if duplicate {
		return err
	}

	undo := l.undoFor(p)

	l.store.recordFailed(p)
	l.detachPending(p)

	if l.mesh == nil {
		err = l.checkSeparated(p)
		if err == nil && l.cornersTold() {
			err = l.buildMesh()
		}
	} else {
		value, _ := l.interpolate(l.scale(p))
		err = l.insertVertex(p, value)
	}

	if err != nil {
		l.rollback(p, undo)

		return err
	}

	return nil
}

// tellUndo is what a rejected tell must restore.
type tellUndo struct {
	pending bool
	failed  bool
	noMesh  bool

	yMin, yMax, yScale float64
}

func (l *Learner2D) undoFor(p adaptive.Point2) tellUndo {
	return tellUndo{
		pending: l.store.isPending(p),
		failed:  l.store.isFailed(p),
		noMesh:  l.mesh == nil,
		yMin:    l.yMin,
		yMax:    l.yMax,
		yScale:  l.yScale,
	}
}

// rollback reverts a tell of p the mesh rejected. The mesh itself is left
// untouched by a failed insertion; a failed build is discarded.
func (l *Learner2D) rollback(p adaptive.Point2, u tellUndo) {
	l.store.undo(p, u.pending, u.failed)
	l.yMin, l.yMax, l.yScale = u.yMin, u.yMax, u.yScale

	if u.noMesh {
		l.resetMesh()

		return
	}

	if u.pending {
		l.attachPending(p, -1)
	}
}

// checkSeparated rejects p, before the mesh exists, when it would collapse
// onto a corner or a told input once the mesh is built.
func (l *Learner2D) checkSeparated(p adaptive.Point2) error {
	u := l.scale(p)

	others := make([]adaptive.Point2, 0, len(l.store.log)+4)
	for _, c := range l.cornerPoints() {
		others = append(others, c)
	}

	for _, s := range l.store.log {
		others = append(others, s.X)
	}

	for _, q := range others {
		if q == p {
			continue
		}

		v := l.scale(q)
		if math.Abs(u[0]-v[0]) <= geomEps && math.Abs(u[1]-v[1]) <= geomEps {
			return fmt.Errorf("%w: cannot triangulate %v: too close to %v", adaptive.ErrInvalidInput, p, q)
		}
	}

	return nil
}

func (l *Learner2D) resetMesh() {
	l.mesh = nil
	l.values = make(map[int]float64)
	l.vertexOf = make(map[adaptive.Point2]int)
	l.losses = make(map[int]float64)
	l.pendingIn = make(map[int][]adaptive.Point2)
	l.pendingTri = make(map[adaptive.Point2][]int)
	l.queue.reset()
}

// place applies an evaluated point to the mesh, building it once the
// corners are told.
func (l *Learner2D) place(p adaptive.Point2, y float64, rescale bool) error {
	if l.mesh == nil {
		if err := l.checkSeparated(p); err != nil {
			return err
		}

		if l.cornersTold() {
			return l.buildMesh()
		}

		return nil
	}

	if vid, ok := l.vertexOf[p]; ok {
		l.values[vid] = y

		if rescale {
			l.recomputeAll()
		} else {
			l.updateVertex(vid)
		}

		return nil
	}

	if err := l.insertVertex(p, y); err != nil {
		return err
	}

	if rescale {
		l.recomputeAll()
	}

	return nil
}

// cornerPoints returns the corners in the order of the unit square's
// vertices.
func (l *Learner2D) cornerPoints() [4]adaptive.Point2 {
	x, y := l.bounds[0], l.bounds[1]

	return [4]adaptive.Point2{
		{x.Min, y.Min},
		{x.Max, y.Min},
		{x.Max, y.Max},
		{x.Min, y.Max},
	}
}

func (l *Learner2D) missingCorner() (adaptive.Point2, bool) {
	for _, c := range l.cornerPoints() {
		if !l.store.known(c) {
			return c, true
		}
	}

	return adaptive.Point2{}, false
}

func (l *Learner2D) cornersTold() bool {
	for _, c := range l.cornerPoints() {
		if _, ok := l.store.data[c]; ok {
			continue
		}

		if !l.store.isFailed(c) {
			return false
		}
	}

	return true
}

// buildMesh triangulates the square from every point told so far, in tell
// order, then assigns the pending inputs to their triangles.
func (l *Learner2D) buildMesh() error {
	l.mesh = newSquareTriangulation()

	corners := l.cornerPoints()

	var (
		sum   float64
		count int
	)

	for _, c := range corners {
		if y, ok := l.store.data[c]; ok {
			sum += y
			count++
		}
	}

	fill := 0.0
	if count > 0 {
		fill = sum / float64(count)
	}

	for k, c := range corners {
		l.vertexOf[c] = k

		if y, ok := l.store.data[c]; ok {
			l.values[k] = y
		} else {
			l.values[k] = fill
		}
	}

	for _, s := range l.store.log {
		if vid, ok := l.vertexOf[s.X]; ok {
			if !s.Failed && vid >= len(corners) {
				l.values[vid] = s.Y
			}

			continue
		}

		value := s.Y
		if s.Failed {
			value, _ = l.interpolate(l.scale(s.X))
		}

		if err := l.insertVertex(s.X, value); err != nil {
			return err
		}
	}

	pending := make([]adaptive.Point2, 0, len(l.store.pending))
	for p := range l.store.pending {
		pending = append(pending, p)
	}

	sortPoints(pending)

	for _, p := range pending {
		l.attachPending(p, -1)
	}

	l.recomputeAll()

	return nil
}

// insertVertex adds a told point to the mesh and updates the losses of the
// triangles around it.
func (l *Learner2D) insertVertex(p adaptive.Point2, value float64) error {
	vid, removed, created, err := l.mesh.insert(l.scale(p))
	if err != nil {
		return fmt.Errorf("%w: cannot triangulate %v: %v", adaptive.ErrInvalidInput, p, err)
	}

	l.values[vid] = value
	l.vertexOf[p] = vid

	var orphans []adaptive.Point2

	seen := make(map[adaptive.Point2]bool)

	for _, id := range removed {
		for _, q := range l.pendingIn[id] {
			if !seen[q] {
				seen[q] = true
				orphans = append(orphans, q)
			}
		}

		delete(l.pendingIn, id)
		delete(l.losses, id)
		l.queue.remove(id)
	}

	for _, q := range orphans {
		l.detachPending(q)
		l.attachPending(q, -1)
	}

	affected := make(map[int]bool, 2*len(created))
	for _, id := range created {
		affected[id] = true

		for _, n := range l.mesh.neighbors(id) {
			affected[n] = true
		}
	}

	l.updateTriangles(affected)

	return nil
}

// updateVertex recomputes the triangles whose loss depends on vertex vid.
func (l *Learner2D) updateVertex(vid int) {
	affected := make(map[int]bool)

	for _, id := range l.mesh.incidentTo(vid) {
		affected[id] = true

		for _, n := range l.mesh.neighbors(id) {
			affected[n] = true
		}
	}

	l.updateTriangles(affected)
}

func (l *Learner2D) updateTriangles(ids map[int]bool) {
	for _, id := range sortedKeys(ids) {
		l.losses[id] = l.simplexLoss(id)
		l.refresh(id)
	}
}

func (l *Learner2D) recomputeAll() {
	l.queue.reset()
	l.losses = make(map[int]float64, len(l.mesh.tris))

	for _, id := range l.mesh.ids() {
		l.losses[id] = l.simplexLoss(id)
		l.refresh(id)
	}
}

// simplexLoss evaluates the configured loss on triangle id.
func (l *Learner2D) simplexLoss(id int) float64 {
	ys := l.yScale
	if ys == 0 {
		ys = 1
	}

	v := l.mesh.tris[id]

	var s Simplex
	for k := 0; k < 3; k++ {
		s.Vertices[k] = l.mesh.point(v[k])
		s.Values[k] = l.values[v[k]] / ys
	}

	for _, n := range l.mesh.neighbors(id) {
		o := l.mesh.opposite(id, n)
		if o < 0 {
			continue
		}

		s.Neighbors = append(s.Neighbors, l.mesh.point(o))
		s.NeighborValues = append(s.NeighborValues, l.values[o]/ys)
	}

	loss := l.loss(s)
	if math.IsNaN(loss) || loss < 0 {
		return 0
	}

	return loss
}

// refresh requeues triangle id with its loss scaled by the share of its
// area left by its pending inputs, or drops it when it cannot be split.
func (l *Learner2D) refresh(id int) {
	_, subArea := l.largestSub(id)
	if subArea < l.minArea {
		l.queue.remove(id)

		return
	}

	area := l.mesh.area(id)
	if area <= 0 {
		l.queue.remove(id)

		return
	}

	l.queue.set(id, l.losses[id]*subArea/area)
}

// largestSub returns the largest triangle of the subdivision of triangle id
// by its pending inputs, in unit square coordinates.
func (l *Learner2D) largestSub(id int) ([3]adaptive.Point2, float64) {
	a, b, c := l.mesh.corners(id)

	pending := l.pendingIn[id]
	if len(pending) == 0 {
		return [3]adaptive.Point2{a, b, c}, l.mesh.area(id)
	}

	mini := newSingleTriangulation(a, b, c)
	for _, p := range pending {
		_, _, _, _ = mini.insert(l.scale(p))
	}

	return largestTriangle(mini)
}

// askVirtual places an input before the corners are told, treating the
// whole square as one region subdivided by every other known input.
func (l *Learner2D) askVirtual() (adaptive.Point2, float64, bool) {
	mini := newSquareTriangulation()

	known := make([]adaptive.Point2, 0, len(l.store.log)+len(l.store.pending))
	for _, s := range l.store.log {
		known = append(known, s.X)
	}

	pending := make([]adaptive.Point2, 0, len(l.store.pending))
	for p := range l.store.pending {
		pending = append(pending, p)
	}

	sortPoints(pending)
	known = append(known, pending...)

	for _, p := range known {
		_, _, _, _ = mini.insert(l.scale(p))
	}

	sub, area := largestTriangle(mini)
	if area < l.minArea {
		return adaptive.Point2{}, 0, false
	}

	p, ok := l.pick(sub)

	return p, area, ok
}

// candidate chooses the next input inside triangle id.
func (l *Learner2D) candidate(id int) (adaptive.Point2, bool) {
	sub, area := l.largestSub(id)
	if area < l.minArea {
		return adaptive.Point2{}, false
	}

	return l.pick(sub)
}

// pick returns the split point of a triangle in domain coordinates, falling
// back to the centroid when the preferred point is already known.
func (l *Learner2D) pick(t [3]adaptive.Point2) (adaptive.Point2, bool) {
	for _, q := range [2]adaptive.Point2{splitPoint(t, l.maxBadness), centroid(t)} {
		p := l.unscale(q)
		if !l.store.known(p) {
			return p, true
		}
	}

	return adaptive.Point2{}, false
}

// attachPending registers p with every triangle containing it, starting
// from hint when it is a live triangle.
func (l *Learner2D) attachPending(p adaptive.Point2, hint int) {
	u := l.scale(p)

	id := hint
	if _, ok := l.mesh.tris[id]; !ok || !l.mesh.contains(id, u) {
		var found bool

		id, found = l.mesh.locate(u)
		if !found {
			return
		}
	}

	owners := []int{id}

	for _, n := range l.mesh.neighbors(id) {
		if l.mesh.contains(n, u) {
			owners = append(owners, n)
		}
	}

	l.pendingTri[p] = owners

	for _, o := range owners {
		l.pendingIn[o] = append(l.pendingIn[o], p)
		l.refresh(o)
	}
}

// detachPending unregisters p from the triangles holding it.
func (l *Learner2D) detachPending(p adaptive.Point2) {
	owners, ok := l.pendingTri[p]
	if !ok {
		return
	}

	delete(l.pendingTri, p)

	for _, id := range owners {
		list := l.pendingIn[id]
		for i, q := range list {
			if q == p {
				list = append(list[:i], list[i+1:]...)

				break
			}
		}

		if len(list) == 0 {
			delete(l.pendingIn, id)
		} else {
			l.pendingIn[id] = list
		}

		if _, alive := l.mesh.tris[id]; alive {
			l.refresh(id)
		}
	}
}

// interpolate evaluates the piecewise linear surface at u, in unit square
// coordinates.
func (l *Learner2D) interpolate(u adaptive.Point2) (float64, bool) {
	id, ok := l.mesh.locate(u)
	if !ok {
		return 0, false
	}

	w := l.mesh.barycentric(id, u)
	v := l.mesh.tris[id]

	return w[0]*l.values[v[0]] + w[1]*l.values[v[1]] + w[2]*l.values[v[2]], true
}

// updateScale tracks the output range and reports whether it grew enough
// that every loss must be recomputed.
func (l *Learner2D) updateScale(y float64) bool {
	if len(l.store.data) == 1 {
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

func (l *Learner2D) scale(p adaptive.Point2) adaptive.Point2 {
	return adaptive.Point2{
		clamp01(l.bounds[0].Scale(p[0])),
		clamp01(l.bounds[1].Scale(p[1])),
	}
}

func (l *Learner2D) unscale(u adaptive.Point2) adaptive.Point2 {
	return adaptive.Point2{l.bounds[0].Unscale(u[0]), l.bounds[1].Unscale(u[1])}
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// largestTriangle returns the triangle of t with the largest area; the
// oldest wins ties.
func largestTriangle(t *triangulation) ([3]adaptive.Point2, float64) {
	var (
		best [3]adaptive.Point2
		area = -1.0
	)

	for _, id := range t.ids() {
		if a := t.area(id); a > area {
			x, y, z := t.corners(id)
			best, area = [3]adaptive.Point2{x, y, z}, a
		}
	}

	return best, math.Max(area, 0)
}

// splitPoint returns the midpoint of the longest edge for badly shaped
// triangles and the centroid otherwise.
func splitPoint(t [3]adaptive.Point2, maxBadness float64) adaptive.Point2 {
	longest, length2 := 0, -1.0

	for k := 0; k < 3; k++ {
		a, b := t[k], t[(k+1)%3]

		d := (b[0]-a[0])*(b[0]-a[0]) + (b[1]-a[1])*(b[1]-a[1])
		if d > length2 {
			longest, length2 = k, d
		}
	}

	a, b := t[longest], t[(longest+1)%3]
	mid := adaptive.Point2{a[0] + (b[0]-a[0])/2, a[1] + (b[1]-a[1])/2}

	area := math.Abs(orient(t[0], t[1], t[2])) / 2
	if area == 0 || length2/(area*4/math.Sqrt(3)) > maxBadness {
		return mid
	}

	return centroid(t)
}

func centroid(t [3]adaptive.Point2) adaptive.Point2 {
	return adaptive.Point2{
		(t[0][0] + t[1][0] + t[2][0]) / 3,
		(t[0][1] + t[1][1] + t[2][1]) / 3,
	}
}

func sortPoints(ps []adaptive.Point2) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i][0] != ps[j][0] {
			return ps[i][0] < ps[j][0]
		}

		return ps[i][1] < ps[j][1]
	})
}

//////
// Factory.
//////

// NewLearner2D creates a learner for the configured rectangle.
//
// Returns:
//   - *Learner2D: The learner, empty
//   - error: ErrInvalidBounds if either range is empty or not finite.
func NewLearner2D(cfg Learner2DConfig) (*Learner2D, error) {
	for _, b := range cfg.Bounds {
		if err := b.Validate(); err != nil {
			return nil, err
		}
	}

	if cfg.Loss == nil {
		cfg.Loss = DefaultLoss2D
	}

	if cfg.MinArea <= 0 {
		cfg.MinArea = 1e-10
	}

	if cfg.MaxBadness <= 0 {
		cfg.MaxBadness = 1.5
	}

	return &Learner2D{
		bounds:     cfg.Bounds,
		loss:       cfg.Loss,
		minArea:    cfg.MinArea,
		maxBadness: cfg.MaxBadness,
		store:      newPointStore[adaptive.Point2, float64](),
		values:     make(map[int]float64),
		vertexOf:   make(map[adaptive.Point2]int),
		losses:     make(map[int]float64),
		pendingIn:  make(map[int][]adaptive.Point2),
		pendingTri: make(map[adaptive.Point2][]int),
		queue:      newLossQueue[int](),
	}, nil
}

var _ adaptive.Learner[adaptive.Point2, float64] = (*Learner2D)(nil)
