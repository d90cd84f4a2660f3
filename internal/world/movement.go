package world

import (
	"github.com/Faultbox/tilecollide/pkg/collision"
	"github.com/Faultbox/tilecollide/pkg/math"
)

// DefaultSlideIterations bounds the sweep/slide steps of one move.
const DefaultSlideIterations = 4

// Mover moves boxes through a world, sliding along the surfaces they hit.
type Mover struct {
	world      *World
	mask       collision.TagMask
	iterations int
}

// NewMover creates a mover blocked by shapes with a tag in mask.
func NewMover(w *World, mask collision.TagMask) *Mover {
	return &Mover{world: w, mask: mask, iterations: DefaultSlideIterations}
}

// Move is the outcome of MoveAndSlide.
type Move struct {
	Rect    math.Rect // final position
	Hits    int       // contacts resolved on the way
	Normals []math.Vec2
}

// Blocked reports whether the move touched anything.
func (m Move) Blocked() bool {
	return m.Hits > 0
}

// MoveAndSlide moves r by displacement. On contact the box stops at the
// surface and the rest of the displacement continues along it.
func (mv *Mover) MoveAndSlide(r math.Rect, displacement math.Vec2) Move {
	out := Move{Rect: r}
	remaining := displacement

	for i := 0; i < mv.iterations && !remaining.IsZero(); i++ {
		res, hit := mv.world.Sweep(out.Rect, remaining, mv.mask)
		if !hit {
			out.Rect = out.Rect.Translate(remaining)
			return out
		}
		out.Hits++
		out.Normals = append(out.Normals, res.Normal)
		out.Rect = out.Rect.Translate(remaining.Scale(res.T))
		remaining = res.Slide(remaining)
	}
	return out
}

// PathMover walks a box along the cells of a path, one waypoint at a time.
type PathMover struct {
	mover *Mover
	path  [][2]int
	index int
}

// NewPathMover creates a path follower using mover for each step.
func NewPathMover(mover *Mover) *PathMover {
	return &PathMover{mover: mover}
}

// SetPath replaces the current path. The first node is the start cell and
// is skipped.
func (pm *PathMover) SetPath(path [][2]int) {
	if len(path) > 1 {
		pm.path = path[1:]
	} else {
		pm.path = nil
	}
	pm.index = 0
}

// Done reports whether the last waypoint was reached.
func (pm *PathMover) Done() bool {
	return pm.index >= len(pm.path)
}

// Waypoint returns the cell currently walked to.
func (pm *PathMover) Waypoint() ([2]int, bool) {
	if pm.Done() {
		return [2]int{}, false
	}
	return pm.path[pm.index], true
}

// Step moves r up to dist towards the current waypoint's cell center and
// advances to the next waypoint once r's center arrives.
func (pm *PathMover) Step(r math.Rect, dist float64) math.Rect {
	cell, ok := pm.Waypoint()
	if !ok {
		return r
	}
	target := pm.mover.world.CellCenter(cell[0], cell[1])
	delta := target.Sub(r.Center())
	if l := delta.Length(); l > dist {
		delta = delta.Scale(dist / l)
	}

	r = pm.mover.MoveAndSlide(r, delta).Rect
	if r.Center().Distance(target) < 1e-6 {
		pm.index++
	}
	return r
}
