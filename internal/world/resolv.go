package world

import (
	"github.com/solarlune/resolv"

	"github.com/Faultbox/tilecollide/pkg/collision"
)

// TagSolid is set on every exported object in addition to its shape tag.
const TagSolid = "solid"

// Space exports the world's merged static shapes into a resolv space with
// cells of cellW x cellH pixels, for movers written against resolv. Objects
// are tagged "solid" plus their collision tag, and Data points to the
// source WorldShape.
func (w *World) Space(cellW, cellH int) *resolv.Space {
	b := w.Bounds()
	space := resolv.NewSpace(int(b.W), int(b.H), cellW, cellH)

	for _, s := range w.coll.Index().Shapes() {
		r := s.Rect
		obj := resolv.NewObject(r.X, r.Y, r.W, r.H, TagSolid, s.Tag.String())
		obj.SetShape(resolv.NewRectangle(0, 0, r.W, r.H))
		obj.Data = s
		space.Add(obj)
	}
	return space
}

// ShapeOf returns the WorldShape behind an object exported by Space.
func ShapeOf(obj *resolv.Object) (*collision.WorldShape, bool) {
	s, ok := obj.Data.(*collision.WorldShape)
	return s, ok
}
