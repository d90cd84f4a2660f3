package collision

import (
	gomath "math"
	"sort"

	"github.com/Faultbox/tilecollide/pkg/math"
)

const (
	// sweepProbe is how far past the contact time tied shapes are compared
	// by overlap area.
	sweepProbe = 1e-3

	// sweepTie is the tolerance for treating two contact times as equal.
	sweepTie = 1e-9
)

type sweepHit struct {
	shape  *WorldShape
	t      float64
	normal math.Vec2
	area   float64
}

// Sweep moves r along displacement and returns the first contact with a
// shape whose tag is in mask. The boolean is false when nothing is hit,
// including for a zero displacement.
//
// A shape that already overlaps r blocks only if displacement moves further
// into it; the contact is then reported at T=0 with the normal of its
// shallowest exit axis. When several shapes are touched at the same T, the
// one overlapping r most just after contact wins, then the lowest origin x,
// then y.
func (idx *Index) Sweep(r math.Rect, displacement math.Vec2, mask TagMask) (Result, bool) {
	if displacement.IsZero() {
		return Result{}, false
	}

	region := r.Union(r.Translate(displacement))
	x0, y0, x1, y1 := idx.closedRange(region)

	var hits []sweepHit
	best := gomath.Inf(1)
	idx.visit(x0, y0, x1, y1, func(s *WorldShape) bool {
		if !mask.Has(s.Tag) {
			return true
		}
		t, n, ok := sweepRect(r, displacement, s.Rect)
		if !ok || t > best+sweepTie {
			return true
		}
		if t < best-sweepTie {
			best = t
			hits = hits[:0]
		}
		hits = append(hits, sweepHit{shape: s, t: t, normal: n})
		return true
	})
	if len(hits) == 0 {
		return Result{}, false
	}

	if len(hits) > 1 {
		probe := r.Translate(displacement.Scale(best + sweepProbe))
		for i := range hits {
			hits[i].area = probe.Intersection(hits[i].shape.Rect).Area()
		}
		sort.SliceStable(hits, func(i, j int) bool {
			a, b := hits[i], hits[j]
			if a.area != b.area {
				return a.area > b.area
			}
			if a.shape.Rect.X != b.shape.Rect.X {
				return a.shape.Rect.X < b.shape.Rect.X
			}
			if a.shape.Rect.Y != b.shape.Rect.Y {
				return a.shape.Rect.Y < b.shape.Rect.Y
			}
			return a.shape.ID < b.shape.ID
		})
	}

	res := Result{
		Shapes: make([]*WorldShape, len(hits)),
		T:      hits[0].t,
		Normal: hits[0].normal,
	}
	for i, h := range hits {
		res.Shapes[i] = h.shape
	}
	res.MTV = displacement.Scale(res.T - 1)
	return res, true
}

// sweepRect is a swept AABB test of m moving by d against the static s. It
// returns the entry time in [0,1] and the contact normal.
func sweepRect(m math.Rect, d math.Vec2, s math.Rect) (float64, math.Vec2, bool) {
	entryX, exitX, ok := axisTimes(m.X, m.MaxX(), s.X, s.MaxX(), d.X)
	if !ok {
		return 0, math.Vec2{}, false
	}
	entryY, exitY, ok := axisTimes(m.Y, m.MaxY(), s.Y, s.MaxY(), d.Y)
	if !ok {
		return 0, math.Vec2{}, false
	}

	entry := gomath.Max(entryX, entryY)
	exit := gomath.Min(exitX, exitY)
	if entry >= exit || entry > 1 || exit <= 0 {
		return 0, math.Vec2{}, false
	}

	if entry < 0 {
		// Already inside s: block only movement that goes deeper.
		n := separation(m, s).Normalize()
		if d.Dot(n) >= 0 {
			return 0, math.Vec2{}, false
		}
		return 0, n, true
	}

	var n math.Vec2
	switch {
	case entryX > entryY:
		n = math.Vec2{X: -sign(d.X)}
	case entryY > entryX:
		n = math.Vec2{Y: -sign(d.Y)}
	case gomath.Abs(d.Y) >= gomath.Abs(d.X):
		n = math.Vec2{Y: -sign(d.Y)}
	default:
		n = math.Vec2{X: -sign(d.X)}
	}
	return entry, n, true
}

// axisTimes returns when the moving span [m0,m1) starts and stops
// overlapping [s0,s1) along one axis. Without motion on the axis the spans
// must already overlap with positive length.
func axisTimes(m0, m1, s0, s1, d float64) (float64, float64, bool) {
	switch {
	case d > 0:
		return (s0 - m1) / d, (s1 - m0) / d, true
	case d < 0:
		return (s1 - m0) / d, (s0 - m1) / d, true
	default:
		if m0 < s1 && s0 < m1 {
			return gomath.Inf(-1), gomath.Inf(1), true
		}
		return 0, 0, false
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
