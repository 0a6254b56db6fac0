package learner

import (
	"errors"
	"math"
	"sort"

	"github.com/thalesfsp/adaptive"
)

// geomEps is the orientation tolerance in scaled (unit square) coordinates.
const geomEps = 1e-15

var (
	errOutsideMesh     = errors.New("point outside triangulation")
	errDuplicateVertex = errors.New("point coincides with a vertex")
	errDegenerate      = errors.New("cannot form a valid cavity")
)

type edgeKey struct{ a, b int }

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}

	return edgeKey{a, b}
}

// triangulation is an incremental Delaunay triangulation (Bowyer-Watson)
// of a convex region. Vertices are never removed. Triangles are stored
// counter-clockwise and identified by ids that are never reused.
type triangulation struct {
	vertices []adaptive.Point2
	tris     map[int][3]int
	edges    map[edgeKey][]int
	incident map[int]map[int]struct{}
	next     int
	last     int
}

type cavityEdge struct {
	a, b    int
	owner   int
	outside int
}

func newTriangulation(vertices []adaptive.Point2, tris [][3]int) *triangulation {
	t := &triangulation{
		vertices: append([]adaptive.Point2(nil), vertices...),
		tris:     make(map[int][3]int),
		edges:    make(map[edgeKey][]int),
		incident: make(map[int]map[int]struct{}),
		last:     -1,
	}

	for _, v := range tris {
		t.addTri(v)
	}

	return t
}

// newSquareTriangulation covers the unit square with two triangles. The
// corners are vertices 0..3 in the order (0,0), (1,0), (1,1), (0,1).
func newSquareTriangulation() *triangulation {
	return newTriangulation(
		[]adaptive.Point2{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		[][3]int{{0, 1, 2}, {0, 2, 3}},
	)
}

func newSingleTriangulation(a, b, c adaptive.Point2) *triangulation {
	return newTriangulation([]adaptive.Point2{a, b, c}, [][3]int{{0, 1, 2}})
}

func (t *triangulation) point(v int) adaptive.Point2 {
	return t.vertices[v]
}

func (t *triangulation) corners(id int) (a, b, c adaptive.Point2) {
	v := t.tris[id]

	return t.vertices[v[0]], t.vertices[v[1]], t.vertices[v[2]]
}

func (t *triangulation) area(id int) float64 {
	a, b, c := t.corners(id)

	return math.Abs(orient(a, b, c)) / 2
}

// ids returns the triangle ids in ascending order.
func (t *triangulation) ids() []int {
	out := make([]int, 0, len(t.tris))
	for id := range t.tris {
		out = append(out, id)
	}

	sort.Ints(out)

	return out
}

func (t *triangulation) addTri(v [3]int) int {
	if orient(t.vertices[v[0]], t.vertices[v[1]], t.vertices[v[2]]) < 0 {
		v[1], v[2] = v[2], v[1]
	}

	id := t.next
	t.next++
	t.tris[id] = v

	for k := 0; k < 3; k++ {
		e := newEdgeKey(v[k], v[(k+1)%3])
		t.edges[e] = append(t.edges[e], id)

		if t.incident[v[k]] == nil {
			t.incident[v[k]] = make(map[int]struct{})
		}

		t.incident[v[k]][id] = struct{}{}
	}

	t.last = id

	return id
}

func (t *triangulation) removeTri(id int) {
	v, ok := t.tris[id]
	if !ok {
		return
	}

	delete(t.tris, id)

	for k := 0; k < 3; k++ {
		e := newEdgeKey(v[k], v[(k+1)%3])

		owners := t.edges[e][:0]
		for _, o := range t.edges[e] {
			if o != id {
				owners = append(owners, o)
			}
		}

		if len(owners) == 0 {
			delete(t.edges, e)
		} else {
			t.edges[e] = owners
		}

		delete(t.incident[v[k]], id)
	}
}

// across returns the triangle sharing edge (a, b) with id.
func (t *triangulation) across(id, a, b int) (int, bool) {
	for _, o := range t.edges[newEdgeKey(a, b)] {
		if o != id {
			return o, true
		}
	}

	return -1, false
}

// neighbors returns the triangles sharing an edge with id.
func (t *triangulation) neighbors(id int) []int {
	v := t.tris[id]
	out := make([]int, 0, 3)

	for k := 0; k < 3; k++ {
		if n, ok := t.across(id, v[k], v[(k+1)%3]); ok {
			out = append(out, n)
		}
	}

	return out
}

// opposite returns the vertex of n that is not shared with id.
func (t *triangulation) opposite(id, n int) int {
	mine := t.tris[id]

	for _, v := range t.tris[n] {
		if v != mine[0] && v != mine[1] && v != mine[2] {
			return v
		}
	}

	return -1
}

// incidentTo returns the triangles having v as a corner, ascending.
func (t *triangulation) incidentTo(v int) []int {
	out := make([]int, 0, len(t.incident[v]))
	for id := range t.incident[v] {
		out = append(out, id)
	}

	sort.Ints(out)

	return out
}

func (t *triangulation) contains(id int, p adaptive.Point2) bool {
	a, b, c := t.corners(id)

	return orient(a, b, p) >= -geomEps && orient(b, c, p) >= -geomEps && orient(c, a, p) >= -geomEps
}

// locate finds a triangle containing p by walking from the most recently
// created triangle, falling back to a full scan.
func (t *triangulation) locate(p adaptive.Point2) (int, bool) {
	id := t.last
	if _, ok := t.tris[id]; ok {
		for steps := 0; steps <= len(t.tris); steps++ {
			v := t.tris[id]
			next := -1

			for k := 0; k < 3; k++ {
				a, b := t.vertices[v[k]], t.vertices[v[(k+1)%3]]
				if orient(a, b, p) < -geomEps {
					if n, ok := t.across(id, v[k], v[(k+1)%3]); ok {
						next = n
					}

					break
				}
			}

			if next < 0 {
				break
			}

			id = next
		}

		if t.contains(id, p) {
			return id, true
		}
	}

	for _, id := range t.ids() {
		if t.contains(id, p) {
			return id, true
		}
	}

	return -1, false
}

// insert adds p as a new vertex and restores the Delaunay property.
//
// Returns:
//   - vid: The new vertex
//   - removed: Triangles destroyed by the insertion
//   - created: Triangles created by the insertion, ascending
//   - error: If p is outside the mesh, coincides with a vertex, or no
//     valid cavity can be formed.
func (t *triangulation) insert(p adaptive.Point2) (vid int, removed, created []int, err error) {
	start, ok := t.locate(p)
	if !ok {
		return -1, nil, nil, errOutsideMesh
	}

	for _, v := range t.tris[start] {
		q := t.vertices[v]
		if math.Abs(q[0]-p[0]) <= geomEps && math.Abs(q[1]-p[1]) <= geomEps {
			return -1, nil, nil, errDuplicateVertex
		}
	}

	cavity := map[int]bool{start: true}
	stack := []int{start}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, n := range t.neighbors(id) {
			if cavity[n] {
				continue
			}

			a, b, c := t.corners(n)
			if inCircle(a, b, c, p) > 0 {
				cavity[n] = true
				stack = append(stack, n)
			}
		}
	}

	boundary, err := t.repairCavity(cavity, start, p)
	if err != nil {
		return -1, nil, nil, err
	}

	removed = sortedKeys(cavity)
	for _, id := range removed {
		t.removeTri(id)
	}

	vid = len(t.vertices)
	t.vertices = append(t.vertices, p)

	for _, e := range boundary {
		if orient(t.vertices[e.a], t.vertices[e.b], p) <= geomEps {
			// p lies on this hull edge, which is split in two.
			continue
		}

		created = append(created, t.addTri([3]int{e.a, e.b, vid}))
	}

	return vid, removed, created, nil
}

// repairCavity makes the cavity star-shaped around p: every boundary edge
// must see p strictly on its left, unless p lies on a hull edge.
func (t *triangulation) repairCavity(cavity map[int]bool, start int, p adaptive.Point2) ([]cavityEdge, error) {
	for attempt := 0; attempt < 64; attempt++ {
		boundary := t.cavityBoundary(cavity)
		changed := false

		for _, e := range boundary {
			o := orient(t.vertices[e.a], t.vertices[e.b], p)
			if o > geomEps {
				continue
			}

			switch {
			case o >= -geomEps && e.outside < 0:
				continue
			case o >= -geomEps:
				cavity[e.outside] = true
			case e.owner != start:
				delete(cavity, e.owner)
			default:
				return nil, errDegenerate
			}

			changed = true

			break
		}

		if !changed {
			return boundary, nil
		}
	}

	return nil, errDegenerate
}

func (t *triangulation) cavityBoundary(cavity map[int]bool) []cavityEdge {
	var out []cavityEdge

	for _, id := range sortedKeys(cavity) {
		v := t.tris[id]

		for k := 0; k < 3; k++ {
			a, b := v[k], v[(k+1)%3]

			n, ok := t.across(id, a, b)
			if ok && cavity[n] {
				continue
			}

			if !ok {
				n = -1
			}

			out = append(out, cavityEdge{a: a, b: b, owner: id, outside: n})
		}
	}

	return out
}

// barycentric returns the weights of p relative to triangle id.
func (t *triangulation) barycentric(id int, p adaptive.Point2) [3]float64 {
	a, b, c := t.corners(id)

	det := orient(a, b, c)
	if det == 0 {
		return [3]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	}

	return [3]float64{
		orient(p, b, c) / det,
		orient(a, p, c) / det,
		orient(a, b, p) / det,
	}
}

//////
// Helper functions.
//////

// orient is twice the signed area of (a, b, c); positive when
// counter-clockwise.
func orient(a, b, c adaptive.Point2) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// inCircle is positive when d lies inside the circumcircle of the
// counter-clockwise triangle (a, b, c).
func inCircle(a, b, c, d adaptive.Point2) float64 {
	adx, ady := a[0]-d[0], a[1]-d[1]
	bdx, bdy := b[0]-d[0], b[1]-d[1]
	cdx, cdy := c[0]-d[0], c[1]-d[1]

	alift := adx*adx + ady*ady
	blift := bdx*bdx + bdy*bdy
	clift := cdx*cdx + cdy*cdy

	return alift*(bdx*cdy-cdx*bdy) + blift*(cdx*ady-adx*cdy) + clift*(adx*bdy-bdx*ady)
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	sort.Ints(out)

	return out
}
