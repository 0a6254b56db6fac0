package learner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/adaptive"
)

func newTestLearner2D(t *testing.T, lo, hi float64) *Learner2D {
	t.Helper()

	b := adaptive.Bounds[float64]{Min: lo, Max: hi}

	l, err := NewLearner2D(DefaultLearner2DConfig(b, b))
	require.NoError(t, err)

	return l
}

func drive2D(t *testing.T, l *Learner2D, f func(adaptive.Point2) float64, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		ps, _ := l.Ask(1)
		require.Len(t, ps, 1)
		require.NoError(t, l.Tell(ps[0], f(ps[0])))
	}
}

// assertDelaunay checks that the mesh is a valid triangulation of the unit
// square with no vertex inside any circumcircle.
func assertDelaunay(t *testing.T, l *Learner2D) {
	t.Helper()

	require.NotNil(t, l.mesh)

	var total float64

	for _, id := range l.mesh.ids() {
		a, b, c := l.mesh.corners(id)
		require.Greater(t, orient(a, b, c), 0.0, "triangle %d is not counter-clockwise", id)

		total += l.mesh.area(id)

		for v, p := range l.mesh.vertices {
			tri := l.mesh.tris[id]
			if v == tri[0] || v == tri[1] || v == tri[2] {
				continue
			}

			assert.LessOrEqual(t, inCircle(a, b, c, p), 1e-12, "vertex %d inside circumcircle of %d", v, id)
		}
	}

	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestNewLearner2D_InvalidBounds(t *testing.T) {
	_, err := NewLearner2D(DefaultLearner2DConfig(
		adaptive.Bounds[float64]{Min: 0, Max: 1},
		adaptive.Bounds[float64]{Min: 1, Max: 0},
	))
	assert.ErrorIs(t, err, adaptive.ErrInvalidBounds)
}

func TestLearner2D_CornersThenCentre(t *testing.T) {
	l := newTestLearner2D(t, -1, 1)

	ps, improvements := l.Ask(4)
	assert.Equal(t, []adaptive.Point2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}, ps)

	for _, imp := range improvements {
		assert.True(t, math.IsInf(imp, 1))
	}

	assert.True(t, math.IsInf(l.Loss(), 1))

	for _, p := range ps {
		require.NoError(t, l.Tell(p, 0))
	}

	assert.False(t, math.IsInf(l.Loss(), 1))
	assert.Len(t, l.Triangles(), 2)

	ps, _ = l.Ask(1)
	assert.Equal(t, []adaptive.Point2{{0, 0}}, ps)

	// The centre is pending on the shared edge; the next points split the
	// halves it leaves instead of repeating it.
	ps, improvements = l.Ask(4)
	require.Len(t, ps, 4)
	assert.NotContains(t, ps, adaptive.Point2{0, 0})

	for i := 1; i < len(improvements); i++ {
		assert.LessOrEqual(t, improvements[i], improvements[i-1])
	}
}

func TestLearner2D_AskBeforeCornersTold(t *testing.T) {
	l := newTestLearner2D(t, 0, 1)

	ps, _ := l.Ask(12)
	require.Len(t, ps, 12)

	seen := make(map[adaptive.Point2]bool)
	for _, p := range ps {
		assert.False(t, seen[p], "duplicate %v", p)

		seen[p] = true
	}

	for _, p := range ps {
		require.NoError(t, l.Tell(p, p[0]+p[1]))
	}

	assert.Equal(t, 12, l.NPoints())
	assertDelaunay(t, l)
}

func TestLearner2D_NoDuplicateDispatch(t *testing.T) {
	l := newTestLearner2D(t, -1, 1)
	f := func(p adaptive.Point2) float64 { return math.Sin(3*p[0]) * math.Cos(2*p[1]) }

	seen := make(map[adaptive.Point2]bool)

	var held []adaptive.Point2

	for round := 0; round < 25; round++ {
		ps, _ := l.Ask(6)

		for _, p := range ps {
			require.False(t, seen[p], "%v asked twice", p)
			seen[p] = true
		}

		// Every third input, a corner among them, stays pending for a while.
		for i, p := range ps {
			if i%3 == 2 {
				held = append(held, p)
			} else {
				require.NoError(t, l.Tell(p, f(p)))
			}
		}

		if round == 4 {
			assert.Nil(t, l.mesh, "a corner is still pending")

			for _, p := range held {
				require.NoError(t, l.Tell(p, f(p)))
			}

			held = nil

			require.NotNil(t, l.mesh)
		}
	}

	for _, p := range held {
		require.NoError(t, l.Tell(p, f(p)))
	}

	assertDelaunay(t, l)
	assert.False(t, math.IsInf(l.Loss(), 0))
}

func TestLearner2D_RejectedTellLeavesNoTrace(t *testing.T) {
	l := newTestLearner2D(t, 0, 1)

	corners, _ := l.Ask(4)
	for _, p := range corners {
		require.NoError(t, l.Tell(p, p[0]+p[1]))
	}

	require.NoError(t, l.Tell(adaptive.Point2{0.5, 0.5}, 1))

	before := l.Samples()
	loss := l.Loss()

	// Too close to an existing vertex to be triangulated.
	near := adaptive.Point2{math.Nextafter(0.5, 1), 0.5}

	assert.ErrorIs(t, l.Tell(near, 2), adaptive.ErrInvalidInput)
	assert.ErrorIs(t, l.TellFailed(near), adaptive.ErrInvalidInput)

	assert.Equal(t, 5, l.NPoints())
	assert.Equal(t, before, l.Samples())
	assert.Equal(t, loss, l.Loss())

	replayed := newTestLearner2D(t, 0, 1)
	for _, s := range l.Samples() {
		require.NoError(t, replayed.Tell(s.X, s.Y))
	}

	assert.Equal(t, l.Loss(), replayed.Loss())
	assert.Equal(t, l.Triangles(), replayed.Triangles())

	// The learner keeps working after the rejection.
	drive2D(t, l, func(p adaptive.Point2) float64 { return p[0] * p[1] }, 10)
	assert.Equal(t, 15, l.NPoints())
	assertDelaunay(t, l)
}

func TestLearner2D_RejectedBeforeMeshLeavesNoTrace(t *testing.T) {
	l := newTestLearner2D(t, 0, 1)

	corners, _ := l.Ask(4)
	require.NoError(t, l.Tell(adaptive.Point2{0.5, 0.5}, 1))

	for _, p := range corners[:3] {
		require.NoError(t, l.Tell(p, 0))
	}

	near := adaptive.Point2{math.Nextafter(0.5, 1), 0.5}

	assert.ErrorIs(t, l.Tell(near, 1), adaptive.ErrInvalidInput)
	assert.ErrorIs(t, l.TellFailed(near), adaptive.ErrInvalidInput)
	assert.ErrorIs(t, l.Tell(adaptive.Point2{math.Nextafter(1, 0), 1}, 1), adaptive.ErrInvalidInput)
	assert.Equal(t, 4, l.NPoints())
	assert.Len(t, l.Samples(), 4)

	require.NoError(t, l.Tell(corners[3], 0))
	require.NotNil(t, l.mesh)
	assert.Equal(t, 5, l.NPoints())
	assertDelaunay(t, l)
}

func TestLearner2D_Triangulation(t *testing.T) {
	l := newTestLearner2D(t, 0, 1)
	drive2D(t, l, func(p adaptive.Point2) float64 {
		r := math.Hypot(p[0]-0.5, p[1]-0.5)

		return math.Exp(-math.Pow((r-0.3)/0.03, 2))
	}, 150)

	assertDelaunay(t, l)

	for _, tri := range l.Triangles() {
		assert.GreaterOrEqual(t, tri.Loss, 0.0)
	}
}

func TestLearner2D_DenserNearFeature(t *testing.T) {
	l := newTestLearner2D(t, 0, 1)
	drive2D(t, l, func(p adaptive.Point2) float64 { return math.Tanh((p[0] - 0.5) / 0.025) }, 200)

	var near int
	for p := range l.Data() {
		if math.Abs(p[0]-0.5) < 0.1 {
			near++
		}
	}

	// The band covers a fifth of the domain.
	assert.Greater(t, float64(near)/float64(l.NPoints()), 0.4)
}

func TestLearner2D_FailedNeverReoffered(t *testing.T) {
	l := newTestLearner2D(t, -1, 1)

	ps, _ := l.Ask(5)
	require.Equal(t, adaptive.Point2{0, 0}, ps[4])

	for _, p := range ps[:4] {
		require.NoError(t, l.Tell(p, p[0]*p[1]))
	}

	require.NoError(t, l.TellFailed(ps[4]))
	assert.Equal(t, 4, l.NPoints())

	for i := 0; i < 40; i++ {
		next, _ := l.Ask(1)
		require.Len(t, next, 1)
		require.NotEqual(t, adaptive.Point2{0, 0}, next[0])
		require.NoError(t, l.Tell(next[0], next[0][0]*next[0][1]))
	}

	assertDelaunay(t, l)
	assert.False(t, math.IsInf(l.Loss(), 0))
}

func TestLearner2D_Tell(t *testing.T) {
	l := newTestLearner2D(t, 0, 1)

	require.NoError(t, l.Tell(adaptive.Point2{0.5, 0.5}, 1))
	require.NoError(t, l.Tell(adaptive.Point2{0.5, 0.5}, 1))
	assert.ErrorIs(t, l.Tell(adaptive.Point2{0.5, 0.5}, 2), adaptive.ErrDuplicateInput)
	assert.ErrorIs(t, l.Tell(adaptive.Point2{2, 0.5}, 0), adaptive.ErrOutOfBounds)
	assert.ErrorIs(t, l.Tell(adaptive.Point2{math.NaN(), 0.5}, 0), adaptive.ErrInvalidInput)
	assert.ErrorIs(t, l.Tell(adaptive.Point2{0.25, 0.5}, math.NaN()), adaptive.ErrEvaluation)
	assert.Equal(t, 1, l.NPoints())

	ps, _ := l.Ask(4)
	assert.Len(t, ps, 4)
	assert.NotContains(t, ps, adaptive.Point2{0.5, 0.5})
}

func TestLearner2D_RemoveUnfinished(t *testing.T) {
	l := newTestLearner2D(t, 0, 1)
	drive2D(t, l, func(p adaptive.Point2) float64 { return p[0] * p[0] }, 20)

	first, _ := l.Ask(5)
	loss := l.Loss()

	l.RemoveUnfinished()

	assert.Equal(t, loss, l.Loss())
	assert.Equal(t, 20, l.NPoints())

	again, _ := l.Ask(5)
	assert.Equal(t, first, again)
}

func TestLearner2D_Replay(t *testing.T) {
	f := func(p adaptive.Point2) float64 { return math.Exp(p[0]) * math.Sin(4*p[1]) }

	original := newTestLearner2D(t, -1, 1)
	drive2D(t, original, f, 60)

	ps, _ := original.Ask(1)
	require.NoError(t, original.TellFailed(ps[0]))

	replayed := newTestLearner2D(t, -1, 1)
	for _, s := range original.Samples() {
		if s.Failed {
			require.NoError(t, replayed.TellFailed(s.X))
		} else {
			require.NoError(t, replayed.Tell(s.X, s.Y))
		}
	}

	assert.Equal(t, original.Loss(), replayed.Loss())
	assert.Equal(t, original.Triangles(), replayed.Triangles())
	assert.Equal(t, original.NPoints(), replayed.NPoints())
}

func TestLearner2D_Interpolate(t *testing.T) {
	l := newTestLearner2D(t, 0, 2)

	_, ok := l.Interpolate(adaptive.Point2{1, 1})
	assert.False(t, ok)

	plane := func(p adaptive.Point2) float64 { return 2*p[0] - p[1] + 3 }
	drive2D(t, l, plane, 30)

	for _, p := range []adaptive.Point2{{0.3, 1.7}, {1, 1}, {2, 0}, {1.9, 0.1}} {
		v, ok := l.Interpolate(p)
		require.True(t, ok)
		assert.InDelta(t, plane(p), v, 1e-9)
	}

	_, ok = l.Interpolate(adaptive.Point2{3, 0})
	assert.False(t, ok)
}

func TestLossFunctions2D(t *testing.T) {
	s := Simplex{
		Vertices:       [3]adaptive.Point2{{0, 0}, {1, 0}, {0, 1}},
		Values:         [3]float64{0, 1, 1},
		Neighbors:      []adaptive.Point2{{1, 1}},
		NeighborValues: []float64{3},
	}

	assert.Equal(t, 0.5, s.Area())
	assert.Equal(t, 0.5, AreaLoss(s))

	// The plane z = x + y predicts 2 at (1, 1); the neighbour deviates by 1.
	assert.InDelta(t, 2.0, s.Plane(adaptive.Point2{1, 1}), 1e-15)
	assert.InDelta(t, 0.5*1+0.05*0.25, DefaultLoss2D(s), 1e-15)

	s.Neighbors, s.NeighborValues = nil, nil
	assert.Equal(t, 0.5, DefaultLoss2D(s))
}

func TestTriangulation_Insert(t *testing.T) {
	tr := newSquareTriangulation()

	_, removed, created, err := tr.insert(adaptive.Point2{0.5, 0})
	require.NoError(t, err)
	// The four corners are cocircular, so both triangles are replaced; the
	// hull edge under the point is not used.
	assert.Equal(t, []int{0, 1}, removed)
	assert.Len(t, created, 3)

	_, _, _, err = tr.insert(adaptive.Point2{0.5, 0})
	assert.ErrorIs(t, err, errDuplicateVertex)

	_, _, _, err = tr.insert(adaptive.Point2{1.5, 0.5})
	assert.ErrorIs(t, err, errOutsideMesh)

	_, _, created, err = tr.insert(adaptive.Point2{0.3, 0.6})
	require.NoError(t, err)
	assert.NotEmpty(t, created)

	var total float64
	for _, id := range tr.ids() {
		total += tr.area(id)
	}

	assert.InDelta(t, 1.0, total, 1e-12)
}
