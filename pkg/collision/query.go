package collision

import (
	gomath "math"
	"sort"

	"github.com/Faultbox/tilecollide/pkg/math"
)

// Result is the outcome of an overlap or sweep query. Shapes are shared with
// the index and must not be modified.
type Result struct {
	// Shapes hit by the query. Overlaps orders them by origin x then y;
	// Sweep lists the shapes touched at T, the resolved one first.
	Shapes []*WorldShape

	// MTV is the minimal translation that resolves the first collision.
	// For Overlaps it pushes the query out of Shapes[0] along one axis.
	// For Sweep it moves the end position back to the contact position.
	MTV math.Vec2

	// T is the fraction of the displacement travelled before contact.
	// Always 0 for Overlaps.
	T float64

	// Normal is the unit surface normal at the sweep contact.
	Normal math.Vec2
}

// Empty reports whether nothing was hit.
func (r Result) Empty() bool {
	return len(r.Shapes) == 0
}

// Slide returns the part of displacement left after the contact, with the
// component into the contact surface removed.
func (r Result) Slide(displacement math.Vec2) math.Vec2 {
	rest := displacement.Scale(1 - r.T)
	if r.Normal.IsZero() {
		return rest
	}
	return rest.Sub(r.Normal.Scale(rest.Dot(r.Normal)))
}

// PointBlocked reports whether a shape with a tag in mask contains p. Shapes
// are closed on their min edges and open on their max edges.
func (idx *Index) PointBlocked(p math.Vec2, mask TagMask) bool {
	table := idx.table.Load()
	key := bucketKey{
		X: int(gomath.Floor(p.X / idx.bucketW)),
		Y: int(gomath.Floor(p.Y / idx.bucketH)),
	}
	for _, s := range table.buckets[key].load() {
		if mask.Has(s.Tag) && s.Rect.ContainsPoint(p) {
			return true
		}
	}
	return false
}

// Overlaps returns every shape with a tag in mask that shares positive area
// with q. A zero-size q is treated as a point.
func (idx *Index) Overlaps(q math.Rect, mask TagMask) Result {
	var hits []*WorldShape
	x0, y0, x1, y1 := idx.bucketRange(q)
	idx.visit(x0, y0, x1, y1, func(s *WorldShape) bool {
		if mask.Has(s.Tag) && q.Overlaps(s.Rect) {
			hits = append(hits, s)
		}
		return true
	})
	if len(hits) == 0 {
		return Result{}
	}

	sort.Slice(hits, func(i, j int) bool { return shapeLess(hits[i], hits[j]) })
	return Result{
		Shapes: hits,
		MTV:    separation(q, hits[0].Rect),
	}
}

// separation returns the shortest single-axis translation that moves q out
// of s. Ties go to the vertical axis.
func separation(q, s math.Rect) math.Vec2 {
	dx := shortest(s.X-q.MaxX(), s.MaxX()-q.X)
	dy := shortest(s.Y-q.MaxY(), s.MaxY()-q.Y)
	if gomath.Abs(dx) < gomath.Abs(dy) {
		return math.Vec2{X: dx}
	}
	return math.Vec2{Y: dy}
}

func shortest(neg, pos float64) float64 {
	if -neg < pos {
		return neg
	}
	return pos
}
