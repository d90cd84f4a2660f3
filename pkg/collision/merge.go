package collision

import (
	"sort"
)

// Merge joins same-tag shapes that share a full edge into their bounding
// rectangle. It scans row-major, merging horizontal runs first and then
// vertical runs of the result, and repeats that pair of passes until neither
// finds a merge, so Merge(Merge(s)) equals Merge(s).
//
// This is a greedy approximation, not a minimal rectangle cover: a diagonal
// run of single-tile shapes stays one shape per tile. Shapes of different
// tags are never merged and covered area never changes.
//
// The output is sorted by origin x, then y, and has zero ids.
func Merge(shapes []WorldShape) []WorldShape {
	if len(shapes) == 0 {
		return nil
	}

	work := make([]WorldShape, len(shapes))
	for i, s := range shapes {
		s.ID = 0
		work[i] = s
	}

	for {
		var mergedH, mergedV bool
		work, mergedH = mergePass(work, true)
		work, mergedV = mergePass(work, false)
		if !mergedH && !mergedV {
			break
		}
	}

	sort.SliceStable(work, func(i, j int) bool {
		return shapeLess(&work[i], &work[j])
	})
	return work
}

// mergePass sorts the shapes so that candidates for one axis are adjacent
// and folds each run of edge-sharing shapes into one.
func mergePass(shapes []WorldShape, horizontal bool) ([]WorldShape, bool) {
	if len(shapes) < 2 {
		return shapes, false
	}

	sort.SliceStable(shapes, func(i, j int) bool {
		return passLess(&shapes[i], &shapes[j], horizontal)
	})

	out := make([]WorldShape, 0, len(shapes))
	merged := false
	cur := shapes[0]
	for _, next := range shapes[1:] {
		if adjacent(&cur, &next, horizontal) {
			cur = join(cur, next)
			merged = true
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	return out, merged
}

// passLess orders by tag, then the fixed span of the pass axis, then the
// position along it. Horizontal passes group by (y, h) and walk x.
func passLess(a, b *WorldShape, horizontal bool) bool {
	if a.Tag != b.Tag {
		return a.Tag < b.Tag
	}
	ar, br := a.Rect, b.Rect
	if horizontal {
		if ar.Y != br.Y {
			return ar.Y < br.Y
		}
		if ar.H != br.H {
			return ar.H < br.H
		}
		if ar.X != br.X {
			return ar.X < br.X
		}
		return ar.W < br.W
	}
	if ar.X != br.X {
		return ar.X < br.X
	}
	if ar.W != br.W {
		return ar.W < br.W
	}
	if ar.Y != br.Y {
		return ar.Y < br.Y
	}
	return ar.H < br.H
}

// adjacent reports whether next continues cur along the pass axis with no
// gap and no overlap, covering exactly the same span on the other axis.
func adjacent(cur, next *WorldShape, horizontal bool) bool {
	if cur.Tag != next.Tag {
		return false
	}
	a, b := cur.Rect, next.Rect
	if horizontal {
		return a.Y == b.Y && a.H == b.H && b.X == a.MaxX()
	}
	return a.X == b.X && a.W == b.W && b.Y == a.MaxY()
}

func join(a, b WorldShape) WorldShape {
	parts := make([]Part, 0, len(a.Parts)+len(b.Parts))
	parts = append(parts, a.Parts...)
	parts = append(parts, b.Parts...)
	return WorldShape{
		Rect:  a.Rect.Union(b.Rect),
		Tag:   a.Tag,
		Parts: parts,
	}
}
